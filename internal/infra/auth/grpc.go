package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// healthPrefix: стандартный health-сервис доступен без токена.
const healthPrefix = "/grpc.health.v1.Health/"

// GRPCErrorMapper превращает ошибку в статус gRPC.
type GRPCErrorMapper interface {
	GRPCStatus(err error, method string) error
}

// UnaryAuthInterceptor проверяет Bearer-токен в метаданных gRPC вызова.
// Методы из public и health-сервис пропускаются без проверки.
func UnaryAuthInterceptor(v TokenValidator, errs GRPCErrorMapper, logger *zap.Logger, public ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]struct{}, len(public))
	for _, m := range public {
		open[m] = struct{}{}
	}
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if _, ok := open[info.FullMethod]; ok || strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}

		// 1. Извлекаем метаданные из контекста
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, errs.GRPCStatus(errMissingToken, info.FullMethod)
		}

		// 2. Ищем токен (в gRPC заголовки в нижнем регистре)
		var token string
		if values := md.Get("authorization"); len(values) > 0 {
			token = ExtractBearerToken(values[0])
		}
		if token == "" {
			return nil, errs.GRPCStatus(errMissingToken, info.FullMethod)
		}

		// 3. Та же проверка, что и в HTTP
		principal, err := v.Validate(ctx, token)
		if err != nil {
			logger.Warn("grpc auth failure", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, errs.GRPCStatus(err, info.FullMethod)
		}

		// 4. Обогащаем контекст и идём дальше по цепочке
		ctx = ContextWithPrincipal(ctx, principal)
		ctx = ContextWithToken(ctx, token)
		return handler(ctx, req)
	}
}
