package apperr

import "net/http"

// Kind: закрытый перечень категорий отказов. Транслятор сопоставляет их исчерпывающе.
type Kind int

const (
	KindUnclassified Kind = iota
	KindBadCredentials
	KindAccountLocked
	KindAccountDisabled
	KindCredentialsExpired
	KindUnauthenticated
	KindAccessDenied
	KindValidation
	KindConstraintViolation
	KindMalformedRequest
	KindUnsupportedMediaType
	KindMissingParameter
	KindTypeMismatch
	KindInvalidArgument
	KindDataConflict
	KindIllegalState
	KindDataAccess
	KindNotFound
	KindMethodNotAllowed
	KindTooManyRequests
	KindRuntime

	kindCount
)

// Kinds перечисляет все категории.
func Kinds() []Kind {
	out := make([]Kind, 0, int(kindCount))
	for k := KindUnclassified; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// String: значение поля errorType в конверте.
func (k Kind) String() string {
	switch k {
	case KindUnclassified:
		return "UnclassifiedFailure"
	case KindBadCredentials:
		return "BadCredentials"
	case KindAccountLocked:
		return "AccountLocked"
	case KindAccountDisabled:
		return "AccountDisabled"
	case KindCredentialsExpired:
		return "CredentialsExpired"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindAccessDenied:
		return "AccessDenied"
	case KindValidation:
		return "ValidationFailure"
	case KindConstraintViolation:
		return "ConstraintViolation"
	case KindMalformedRequest:
		return "MalformedRequest"
	case KindUnsupportedMediaType:
		return "UnsupportedMediaType"
	case KindMissingParameter:
		return "MissingParameter"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindDataConflict:
		return "DataConflict"
	case KindIllegalState:
		return "IllegalState"
	case KindDataAccess:
		return "DataAccessFailure"
	case KindNotFound:
		return "NotFound"
	case KindMethodNotAllowed:
		return "MethodNotAllowed"
	case KindTooManyRequests:
		return "TooManyRequests"
	case KindRuntime:
		return "RuntimeFailure"
	}
	return "UnclassifiedFailure"
}

// Status: HTTP-код категории.
func (k Kind) Status() int {
	switch k {
	case KindBadCredentials, KindAccountLocked, KindAccountDisabled, KindCredentialsExpired, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindValidation, KindConstraintViolation, KindMalformedRequest, KindUnsupportedMediaType,
		KindMissingParameter, KindTypeMismatch, KindInvalidArgument:
		return http.StatusBadRequest
	case KindDataConflict, KindIllegalState:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindDataAccess, KindRuntime, KindUnclassified:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// userMessage возвращает фиксированный текст для клиента. InvalidArgument сюда не попадает:
// его сообщение берётся из ошибки и фильтруется.
func (k Kind) userMessage(production bool) string {
	switch k {
	case KindBadCredentials:
		return "用户名或密码错误"
	case KindAccountLocked:
		return "账户已被锁定，请联系管理员"
	case KindAccountDisabled:
		return "账户已被禁用，请联系管理员"
	case KindCredentialsExpired:
		return "密码已过期，请修改密码"
	case KindUnauthenticated:
		return "用户未认证或认证已过期"
	case KindAccessDenied:
		return "权限不足，访问被拒绝"
	case KindValidation:
		if production {
			return "数据验证失败，请检查输入信息"
		}
		return "数据验证失败"
	case KindConstraintViolation:
		return "数据约束违反，请检查输入信息"
	case KindMalformedRequest:
		return "请求数据格式错误"
	case KindUnsupportedMediaType:
		return "不支持的请求数据类型"
	case KindMissingParameter:
		return "缺少必需的请求参数"
	case KindTypeMismatch:
		return "请求参数类型不匹配"
	case KindInvalidArgument:
		return "请求参数错误"
	case KindDataConflict:
		return "数据冲突，可能存在重复记录"
	case KindIllegalState:
		return "系统状态异常，请稍后重试"
	case KindDataAccess:
		return "数据访问异常，请稍后重试"
	case KindNotFound:
		return "请求的资源不存在"
	case KindMethodNotAllowed:
		return "不支持的请求方法"
	case KindTooManyRequests:
		return "请求过于频繁，请稍后重试"
	case KindRuntime:
		return "系统运行异常，请稍后重试"
	case KindUnclassified:
		return "系统异常，请稍后重试"
	}
	return "系统异常，请稍后重试"
}
