package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vostrikovaa/tourdesk/internal/transport/http/apierrors"
)

// Клиентская таксономия ошибок auth-эндпойнтов.
var (
	// ErrInvalidCredentials — логин/пароль отвергнуты сервером.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired — предъявленный токен просрочен.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked — refresh-токен отозван (ротация/logout/replay).
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenMalformed — токен битый или поддельный.
	ErrTokenMalformed = errors.New("token malformed")
)

// Doer — минимальный контракт HTTP-клиента (реализуется *http.Client).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthAPI — типизированный клиент auth-эндпойнтов сервера.
type AuthAPI struct {
	baseURL string
	http    Doer
}

// NewAuthAPI создаёт клиент. httpClient == nil -> http.DefaultClient.
func NewAuthAPI(baseURL string, httpClient Doer) *AuthAPI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &AuthAPI{baseURL: baseURL, http: httpClient}
}

type authPayload struct {
	UserID          string `json:"user_id"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	AccessExpiresAt int64  `json:"access_expires_at"`
}

// Login выполняет вход и возвращает пару токенов.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (access, refresh string, err error) {
	const op = "client.api.Login"

	body := map[string]string{"email": email, "password": password}
	var out authPayload
	if err := a.post(ctx, "/auth/login", body, http.StatusOK, &out); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return out.AccessToken, out.RefreshToken, nil
}

// Refresh обменивает refresh-токен на новую пару (единственный сетевой вызов
// лидера координатора).
func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (access, refresh string, err error) {
	const op = "client.api.Refresh"

	body := map[string]string{"refresh_token": refreshToken}
	var out authPayload
	if err := a.post(ctx, "/auth/refresh", body, http.StatusOK, &out); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return out.AccessToken, out.RefreshToken, nil
}

// Logout отзывает refresh-токен на сервере.
func (a *AuthAPI) Logout(ctx context.Context, refreshToken string) error {
	const op = "client.api.Logout"

	body := map[string]string{"refresh_token": refreshToken}
	if err := a.post(ctx, "/auth/logout", body, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// post — общий POST с маппингом ошибок из унифицированного тела.
func (a *AuthAPI) post(ctx context.Context, path string, in any, wantStatus int, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}

	return nil
}

// apiError разбирает унифицированное тело ошибки и маппит код на сентинел.
func apiError(resp *http.Response) error {
	var body apierrors.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	switch body.Error.Code {
	case apierrors.CodeExpired:
		return ErrTokenExpired
	case apierrors.CodeRevoked:
		return ErrTokenRevoked
	case apierrors.CodeMalformed:
		return ErrTokenMalformed
	case apierrors.CodeInvalidCredentials:
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Error.Code)
	}
}
