package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword хэширует пароль bcrypt; cost вне допустимого диапазона заменяется значением по умолчанию.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

// CheckPassword сравнивает пароль с хэшем за постоянное время.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
