package handlers

import (
	"net/http"

	"github.com/vostrikovaa/tourdesk/internal/models"
	"github.com/vostrikovaa/tourdesk/internal/transport/http/apierrors"
	"github.com/vostrikovaa/tourdesk/internal/transport/http/middleware"

	"github.com/google/uuid"
)

type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	UserID          string `json:"user_id"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	AccessExpiresAt int64  `json:"access_expires_at"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func toAuthResponse(tp *models.TokenPair, uid uuid.UUID) authResponse {
	return authResponse{
		UserID:          uid.String(),
		AccessToken:     tp.AccessToken,
		RefreshToken:    tp.RefreshToken,
		AccessExpiresAt: tp.AccessExpiresAt.Unix(),
	}
}

// Register регистрирует сотрудника и возвращает первую пару токенов.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	tp, uid, err := h.service.RegisterUser(r.Context(), in.Email, in.FullName, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(tp, uid))
}

// Login аутентифицирует сотрудника и возвращает пару токенов.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	tp, uid, err := h.service.LoginUser(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(tp, uid))
}

// Refresh выпускает новую пару по refresh-токену (с ротацией).
// 401 с кодом expired|revoked|malformed — часть контракта клиента.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	tp, uid, err := h.service.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(tp, uid))
}

// Logout отзывает refresh-токен. 204 и при повторном отзыве.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if err := h.service.RevokeToken(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me — защищённый эндпойнт: возвращает идентичность из access-токена.
// Служит пробой для бэк-офисных клиентов (триггер 401 -> refresh).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		apierrors.WriteError(w, r, nil)
		return
	}

	email, _ := middleware.Email(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		UserID: uid.String(),
		Email:  email,
	})
}
