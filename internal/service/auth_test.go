package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vostrikovaa/tourdesk/internal/config"
	"github.com/vostrikovaa/tourdesk/internal/models"
	"github.com/vostrikovaa/tourdesk/internal/storage"
	"github.com/vostrikovaa/tourdesk/mocks"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "tourdesk",
		Audience:        []string{"tourdesk-backoffice"},
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	svc := New(st, testCfg())
	return svc, st, ctrl
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}

// mintRefresh выпускает подписанный refresh-токен в обход хранилища.
func mintRefresh(t *testing.T, svc *Service, userID uuid.UUID, ttl time.Duration) (string, uuid.UUID) {
	t.Helper()
	token, jti, err := svc.issueToken(context.Background(), userID, "", kindRefresh, time.Now().UTC(), ttl)
	require.NoError(t, err)
	return token, jti
}

func TestRegisterUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	email := "User@Example.com"
	norm := "user@example.com"

	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			require.Equal(t, norm, u.Email)
			require.Equal(t, "Анна Петрова", u.FullName)
			require.NotEmpty(t, u.PasswordHash)
			return nil
		})
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, uid, err := svc.RegisterUser(context.Background(), email, "  Анна Петрова  ", "Abcdef12")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
	require.WithinDuration(t, time.Now().Add(svc.cfg.AccessTokenTTL), tp.AccessExpiresAt, 2*time.Second)
}

func TestRegisterUser_InvalidEmail(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "not-an-email", "X", "Abcdef12")
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRegisterUser_WeakOrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "u@e.com", "X", "")
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, _, err = svc.RegisterUser(context.Background(), "u@e.com", "X", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	// Длина достаточная, но нет заглавных и цифр.
	_, _, err = svc.RegisterUser(context.Background(), "u@e.com", "X", "abcdefgh")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUser_EmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

	_, _, err := svc.RegisterUser(context.Background(), "user@example.com", "X", "Abcdef12")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	user := &models.User{
		ID:           userID,
		Email:        "user@example.com",
		PasswordHash: mustHashPW(t, "Abcdef12"),
	}

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(user, nil)
	st.EXPECT().TouchLastLogin(gomock.Any(), userID, gomock.Any()).Return(nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, uid, err := svc.LoginUser(context.Background(), "User@Example.com", "Abcdef12")
	require.NoError(t, err)
	require.Equal(t, userID, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
}

func TestLoginUser_WrongPassword(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: mustHashPW(t, "Abcdef12"),
	}

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(user, nil)

	_, _, err := svc.LoginUser(context.Background(), "user@example.com", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_UnknownEmail(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)

	_, _, err := svc.LoginUser(context.Background(), "ghost@example.com", "Abcdef12")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

// Сбой отметки последнего входа не должен ломать выдачу токенов.
func TestLoginUser_TouchLastLoginFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	user := &models.User{
		ID:           userID,
		Email:        "user@example.com",
		PasswordHash: mustHashPW(t, "Abcdef12"),
	}

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(user, nil)
	st.EXPECT().TouchLastLogin(gomock.Any(), userID, gomock.Any()).Return(errors.New("db down"))
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	_, uid, err := svc.LoginUser(context.Background(), "user@example.com", "Abcdef12")
	require.NoError(t, err)
	require.Equal(t, userID, uid)
}

func TestRefreshToken_OK_RotatesLedger(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	refresh, jti := mintRefresh(t, svc, userID, time.Hour)

	st.EXPECT().RefreshTokenByID(gomock.Any(), jti).
		Return(&models.RefreshToken{TokenID: jti, UserID: userID}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).
		Return(&models.User{ID: userID, Email: "user@example.com"}, nil)
	st.EXPECT().RotateRefreshToken(gomock.Any(), jti, gomock.Any()).
		DoAndReturn(func(_ context.Context, old uuid.UUID, next *models.RefreshToken) (bool, error) {
			require.Equal(t, jti, old)
			require.NotEqual(t, old, next.TokenID)
			require.Equal(t, userID, next.UserID)
			return true, nil
		})

	tp, uid, err := svc.RefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	require.Equal(t, userID, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEqual(t, refresh, tp.RefreshToken)
}

// Просроченный токен отклоняется как expired до любых обращений к реестру,
// даже если его запись там уже отозвана.
func TestRefreshToken_ExpiredBeforeLedger(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	refresh, _ := mintRefresh(t, svc, uuid.New(), -time.Hour)

	_, _, err := svc.RefreshToken(context.Background(), refresh)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshToken_Revoked(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	refresh, jti := mintRefresh(t, svc, userID, time.Hour)

	st.EXPECT().RefreshTokenByID(gomock.Any(), jti).
		Return(&models.RefreshToken{TokenID: jti, UserID: userID, Revoked: true}, nil)

	_, _, err := svc.RefreshToken(context.Background(), refresh)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

// jti с валидной подписью, но без записи в реестре — поддельный или
// домиграционный токен, отклоняется как invalid.
func TestRefreshToken_UnknownJTI(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	refresh, jti := mintRefresh(t, svc, uuid.New(), time.Hour)

	st.EXPECT().RefreshTokenByID(gomock.Any(), jti).Return(nil, storage.ErrNotFound)

	_, _, err := svc.RefreshToken(context.Background(), refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Access-токен не принимается эндпойнтом refresh.
func TestRefreshToken_AccessTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	access, _, err := svc.issueToken(context.Background(), uuid.New(), "u@e.com", kindAccess, time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	_, _, err = svc.RefreshToken(context.Background(), access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Проигрыш гонки ротации: хранилище сообщает, что предшественник уже отозван.
func TestRefreshToken_LostRotationRace(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	refresh, jti := mintRefresh(t, svc, userID, time.Hour)

	st.EXPECT().RefreshTokenByID(gomock.Any(), jti).
		Return(&models.RefreshToken{TokenID: jti, UserID: userID}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).
		Return(&models.User{ID: userID, Email: "user@example.com"}, nil)
	st.EXPECT().RotateRefreshToken(gomock.Any(), jti, gomock.Any()).Return(false, nil)

	_, _, err := svc.RefreshToken(context.Background(), refresh)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshToken_Garbage(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RefreshToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeToken_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	refresh, jti := mintRefresh(t, svc, uuid.New(), time.Hour)

	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), jti).Return(true, nil)

	require.NoError(t, svc.RevokeToken(context.Background(), refresh))
}

// Повторный отзыв уже отозванного токена — успех (идемпотентность logout).
func TestRevokeToken_AlreadyRevokedIsOK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	refresh, jti := mintRefresh(t, svc, uuid.New(), time.Hour)

	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), jti).Return(false, nil)

	require.NoError(t, svc.RevokeToken(context.Background(), refresh))
}

// Просроченный, но подлинный токен принимается к отзыву.
func TestRevokeToken_ExpiredTokenAccepted(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	refresh, jti := mintRefresh(t, svc, uuid.New(), -time.Hour)

	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), jti).Return(true, nil)

	require.NoError(t, svc.RevokeToken(context.Background(), refresh))
}

func TestRevokeToken_Garbage(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	err := svc.RevokeToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Проверка access-токена — stateless: никаких обращений к хранилищу.
func TestValidateToken_OK(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	access, _, err := svc.issueToken(context.Background(), userID, "user@example.com", kindAccess, time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	uid, email, err := svc.ValidateToken(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, userID, uid)
	require.Equal(t, "user@example.com", email)
}

func TestValidateToken_Expired(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	access, _, err := svc.issueToken(context.Background(), uuid.New(), "u@e.com", kindAccess, time.Now().UTC(), -time.Hour)
	require.NoError(t, err)

	_, _, err = svc.ValidateToken(context.Background(), access)
	require.ErrorIs(t, err, ErrTokenExpired)
}

// Refresh-токен не принимается как access.
func TestValidateToken_RefreshRejected(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	refresh, _ := mintRefresh(t, svc, uuid.New(), time.Hour)

	_, _, err := svc.ValidateToken(context.Background(), refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDeleteExpiredTokens(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	now := time.Now().UTC()
	st.EXPECT().DeleteExpiredTokens(gomock.Any(), now).Return(int64(7), nil)

	n, err := svc.DeleteExpiredTokens(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
}
