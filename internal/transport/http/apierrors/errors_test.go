package apierrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vostrikovaa/tourdesk/internal/service"
)

func TestToHTTP_Mapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"expired", service.ErrTokenExpired, http.StatusUnauthorized, CodeExpired},
		{"revoked", service.ErrTokenRevoked, http.StatusUnauthorized, CodeRevoked},
		{"invalid_token", service.ErrInvalidToken, http.StatusUnauthorized, CodeMalformed},
		{"invalid_credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
		{"email_taken", service.ErrEmailTaken, http.StatusConflict, "already_exists"},
		{"invalid_email", service.ErrInvalidEmail, http.StatusBadRequest, "invalid_argument"},
		{"weak_password", service.ErrWeakPassword, http.StatusBadRequest, "invalid_argument"},
		{"bad_body", ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded"},
		{"canceled", context.Canceled, StatusClientClosedRequest, "canceled"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "internal"},
		{"nil", nil, http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status, resp := ToHTTP(tc.err)
			require.Equal(t, tc.wantStatus, status)
			require.Equal(t, tc.wantCode, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}

// Обёрнутые ошибки доменного слоя распознаются через errors.Is.
func TestToHTTP_WrappedError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("service.auth.RefreshToken: %w", service.ErrTokenRevoked)

	status, resp := ToHTTP(wrapped)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, CodeRevoked, resp.Error.Code)
}
