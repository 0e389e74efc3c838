package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// Аутентификация пользователей выполняется веб-приложением перед
// вызовом этого сервиса. Шлюз передает проверенную личность вызывающего
// в заголовке X-User-Id и подписывает запрос общим сервисным токеном

var serviceToken string

func Init(cfg *Config) {
	serviceToken = cfg.ServiceToken
}

// VerifyToken проверяет сервисный токен запроса и возвращает
// идентификатор пользователя, от имени которого действует шлюз
func VerifyToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("no authorization header")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(serviceToken)) != 1 {
		return "", fmt.Errorf("invalid service token")
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		return "", fmt.Errorf("no user id in request")
	}

	return userID, nil
}

// IsStaff сообщает, отметил ли шлюз вызывающего как администратора
func IsStaff(r *http.Request) bool {
	return r.Header.Get("X-User-Staff") == "true"
}
