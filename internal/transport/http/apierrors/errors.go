// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход — ошибка доменного слоя (service), на выход:
//   - корректный HTTP-статус;
//   - краткий машиночитаемый код и безопасное message без утечки деталей.
//
// Клиентский Gateway различает коды токен-ошибок (expired/revoked/malformed),
// поэтому их маппинг — часть контракта протокола, а не косметика.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vostrikovaa/tourdesk/internal/service"
)

// Нестандартный код, часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Машиночитаемые коды токен-ошибок (контракт /auth/refresh).
const (
	CodeExpired            = "expired"
	CodeRevoked            = "revoked"
	CodeMalformed          = "malformed"
	CodeInvalidCredentials = "invalid_credentials"
)

// APIError — единый формат ошибки для фронта.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку доменного слоя в HTTP-статус и унифицированный
// ответ. err == nil — программная ошибка вызова: возвращаем 500/internal,
// чтобы не послать "200 OK" с телом ошибки и не маскировать баг.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := base(err)
	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// ErrInvalidArgument — локальная ошибка парсинга тела запроса.
var ErrInvalidArgument = errors.New("invalid argument")

// base — маппинг доменных ошибок на HTTP-статус/код/сообщение.
func base(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, CodeExpired, "token expired"
	case errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, CodeRevoked, "token revoked"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, CodeMalformed, "token malformed"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already taken"
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
