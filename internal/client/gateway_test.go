package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// newGatewayStack собирает шлюз поверх httptest-сервера и координатора.
func newGatewayStack(t *testing.T, handler http.Handler, refresher Refresher) (*Gateway, *Session, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	session := NewSession()
	coord := NewCoordinator(session, refresher)
	gw := NewGateway(session, coord, srv.Client())

	return gw, session, srv
}

func TestGateway_PassThroughOn200(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("payload"))
	})

	gw, session, srv := newGatewayStack(t, handler, &fakeRefresher{})
	session.Set("token-1", "refresh-1")

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/bookings", nil)
	require.NoError(t, err)

	resp, err := gw.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Bearer token-1", gotAuth.Load())

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "payload", string(body))
}

// 401 → refresh → единственный повтор с новым токеном и исходным телом.
func TestGateway_RetryAfterRefresh(t *testing.T) {
	t.Parallel()

	var attempts int32
	var retryBody atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		if r.Header.Get("Authorization") != "Bearer token-2" {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		retryBody.Store(string(body))
		w.WriteHeader(http.StatusCreated)
	})

	fr := &fakeRefresher{access: "token-2", refresh: "refresh-2"}
	gw, session, srv := newGatewayStack(t, handler, fr)
	session.Set("token-1", "refresh-1")

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		srv.URL+"/bookings", strings.NewReader(`{"city":"Prague"}`))
	require.NoError(t, err)

	resp, err := gw.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, `{"city":"Prague"}`, retryBody.Load())
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	require.Equal(t, int32(1), fr.callCount())
	require.Equal(t, "token-2", session.AccessToken())
}

// Сервер отверг и свежий токен: второй 401 терминален, сессия закрыта,
// третьей попытки не бывает.
func TestGateway_SecondUnauthorizedIsTerminal(t *testing.T) {
	t.Parallel()

	var attempts int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	var logoutCalls int32

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	session := NewSession()
	session.Set("token-1", "refresh-1")
	coord := NewCoordinator(session, &fakeRefresher{access: "token-2", refresh: "refresh-2"},
		WithLogoutHook(func() { atomic.AddInt32(&logoutCalls, 1) }),
	)
	gw := NewGateway(session, coord, srv.Client())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/bookings", nil)
	require.NoError(t, err)

	_, err = gw.Do(req) //nolint:bodyclose // ответа нет
	require.ErrorIs(t, err, ErrSessionExpired)

	require.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	require.Empty(t, session.AccessToken())
	require.Empty(t, session.RefreshToken())
	require.Equal(t, int32(1), atomic.LoadInt32(&logoutCalls))
}

// Терминальный сбой самого refresh: повтор не выполняется.
func TestGateway_RefreshFailureNoRetry(t *testing.T) {
	t.Parallel()

	var attempts int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	fr := &fakeRefresher{err: io.ErrUnexpectedEOF}
	gw, session, srv := newGatewayStack(t, handler, fr)
	session.Set("token-1", "refresh-1")

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/bookings", nil)
	require.NoError(t, err)

	_, err = gw.Do(req) //nolint:bodyclose // ответа нет
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	require.Empty(t, session.AccessToken())
}
