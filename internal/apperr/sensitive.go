package apperr

import "strings"

const (
	filteredMessage = "系统内部错误，请联系管理员"
	emptyMessage    = "系统异常"
)

// Ключевые слова, при наличии которых сообщение не показывается клиенту в production.
var sensitiveKeywords = []string{
	"password", "token", "secret", "key", "database", "sql",
	"connection", "jdbc", "org.postgresql", "java.lang",
	"org.springframework", "hibernate", "stacktrace",
	"pgx", "pgconn", "postgres", "lib/pq", "gorm", "redis",
	"runtime", "goroutine", "panic",
}

// FilterSensitive заменяет сообщение общим текстом, если в нём есть что-то из denylist.
func FilterSensitive(message string) string {
	if strings.TrimSpace(message) == "" {
		return emptyMessage
	}
	lower := strings.ToLower(message)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return filteredMessage
		}
	}
	return message
}
