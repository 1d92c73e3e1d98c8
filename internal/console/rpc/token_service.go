// Package rpc публикует проверку токенов по gRPC без сгенерированного кода:
// сообщения: стандартные типы protobuf (emptypb, wrapperspb, structpb).
package rpc

import (
	"context"

	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/domain"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "manday.auth.v1.TokenService"

const (
	MethodWhoAmI   = "/" + ServiceName + "/WhoAmI"
	MethodValidate = "/" + ServiceName + "/Validate"
)

// TokenService: контракт, который регистрируется в grpc.Server.
type TokenService interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Validate(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// Checker: упрощённая проверка токена, не возвращающая ошибок.
type Checker interface {
	IsValid(ctx context.Context, token string) bool
}

type TokenServer struct {
	checker Checker
}

func NewTokenServer(checker Checker) *TokenServer {
	return &TokenServer{checker: checker}
}

// Register подключает сервис к gRPC-серверу.
func Register(s grpc.ServiceRegistrar, srv TokenService) {
	s.RegisterService(&serviceDesc, srv)
}

// WhoAmI возвращает пользователя, которого интерцептор положил в контекст.
func (s *TokenServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperr.New(apperr.KindUnauthenticated, "no principal in context")
	}
	return principalStruct(p)
}

// Validate: аналог POST /api/auth/validate.
func (s *TokenServer) Validate(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	token := in.GetValue()
	return wrapperspb.Bool(token != "" && s.checker.IsValid(ctx, token)), nil
}

func principalStruct(p *domain.Principal) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":          p.ID,
		"username":    p.Username,
		"realName":    p.RealName,
		"department":  p.Department,
		"roles":       toList(p.Roles),
		"permissions": toList(p.Permissions),
		"authorities": toList(p.Authorities.Values()),
	})
}

func toList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokenService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
		{MethodName: "Validate", Handler: validateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "manday/auth/v1/token_service.proto",
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenService).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodWhoAmI}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenService).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func validateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenService).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodValidate}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenService).Validate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
