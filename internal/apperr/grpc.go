package apperr

import (
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "manday-assess"

// GRPCStatus транслирует ошибку так же, как для HTTP, и упаковывает errorId в ErrorInfo.
func (t *Translator) GRPCStatus(err error, method string) error {
	httpStatus, env := t.Translate(err, method)

	st := status.New(grpcCode(httpStatus), env.Message)
	info := &errdetails.ErrorInfo{
		Reason:   env.ErrorType,
		Domain:   errorDomain,
		Metadata: map[string]string{"errorId": env.ErrorID},
	}
	if env.Details != "" {
		info.Metadata["details"] = env.Details
	}
	if withInfo, detailErr := st.WithDetails(info); detailErr == nil {
		st = withInfo
	}
	return st.Err()
}

func grpcCode(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusMethodNotAllowed:
		return codes.Unimplemented
	case http.StatusConflict:
		return codes.Aborted
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	}
	return codes.Internal
}
