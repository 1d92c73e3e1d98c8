package audit

import "time"

// Operation: тип действия, фиксируемого в журнале аудита.
type Operation string

const (
	OpLogin        Operation = "LOGIN"
	OpLoginFailed  Operation = "LOGIN_FAILED"
	OpLogout       Operation = "LOGOUT"
	OpRegister     Operation = "REGISTER"
	OpUserLock     Operation = "USER_LOCK"
	OpUserUnlock   Operation = "USER_UNLOCK"
	OpTokenRefresh Operation = "TOKEN_REFRESH"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

const ModuleAuth = "AUTH"

type AuditEvent struct {
	ID           string    `json:"id"`         // ULID события
	Operation    Operation `json:"operation"`  // Что делали
	Module       string    `json:"module"`     // В каком модуле
	Description  string    `json:"description"`
	UserID       *int64    `json:"userId,omitempty"` // Кто делал (если известен)
	Username     string    `json:"username"`
	ClientIP     string    `json:"clientIp"`
	UserAgent    string    `json:"userAgent,omitempty"`
	RiskLevel    RiskLevel `json:"riskLevel"`
	Status       string    `json:"status"` // "SUCCESS", "FAILED"
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Signature    string    `json:"signature"` // HMAC-SHA256 для контроля целостности
	Timestamp    time.Time `json:"timestamp"`
}

// DefaultRisk: уровень риска по типу операции.
func DefaultRisk(op Operation) RiskLevel {
	switch op {
	case OpLoginFailed:
		return RiskMedium
	case OpUserLock, OpUserUnlock:
		return RiskHigh
	}
	return RiskLow
}

// Filter: условия выборки журнала.
type Filter struct {
	Username  string
	Operation Operation
	Limit     int
}
