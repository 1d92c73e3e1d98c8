package infra

import (
	"fmt"
	"strings"
)

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "manday"
)

// Префиксы ключей кэша входа
const (
	RedisKeyLoginUser     = RedisNamespace + ":login:user:"
	RedisKeyLoginUsername = RedisNamespace + ":login:username:"
	RedisKeyLoginFailure  = RedisNamespace + ":login:failure:"
	RedisKeyLoginSession  = RedisNamespace + ":login:session:"
	RedisKeyRevokedToken  = RedisNamespace + ":auth:revoked:"
)

func LoginUserKey(userID int64) string {
	return fmt.Sprintf("%s%d", RedisKeyLoginUser, userID)
}

// LoginUsernameKey нормализует регистр, чтобы ZhangSan и zhangsan совпадали.
func LoginUsernameKey(username string) string {
	return RedisKeyLoginUsername + strings.ToLower(username)
}

func LoginFailureKey(username, ip string) string {
	return RedisKeyLoginFailure + strings.ToLower(username) + ":" + ip
}

func LoginSessionKey(sessionID string) string {
	return RedisKeyLoginSession + sessionID
}

func RevokedTokenKey(tokenID string) string {
	return RedisKeyRevokedToken + tokenID
}

// Состояние блокировок учётных записей: множество id и канал сигналов между инстансами.
const (
	RedisKeyLockedUsers  = RedisNamespace + ":auth:locked_set"
	RedisChanLockSignals  = RedisNamespace + ":auth:lock-signals"
)
