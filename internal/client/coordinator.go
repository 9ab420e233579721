package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionExpired — терминальный сбой refresh: сессия очищена, требуется
// повторная аутентификация. Все ожидавшие запросы получают именно эту ошибку.
var ErrSessionExpired = errors.New("session expired: re-authentication required")

// Refresher выполняет сетевой вызов обновления пары токенов.
// Реализуется AuthAPI.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (access, refresh string, err error)
}

// inflight — одно "поколение" refresh: канал закрывается после записи
// результата, что даёт happens-before для всех ожидающих.
type inflight struct {
	done   chan struct{}
	access string
	err    error
}

// Coordinator сериализует конкурентные refresh одного клиентского процесса.
//
// Инвариант: из N запросов, одновременно получивших 401, ровно один (лидер)
// инициирует сетевой вызов Refresher.Refresh; остальные (последователи)
// паркуются на канале поколения и получают общий исход — один и тот же новый
// access-токен либо одну и ту же терминальную ошибку. Никогда не смесь.
//
// Мьютекс защищает только регистрацию лидера/последователя и не удерживается
// на время сетевого вызова: запросы с валидными токенами не блокируются.
type Coordinator struct {
	mu  sync.Mutex
	cur *inflight // nil — Idle; не-nil — Refreshing

	session   *Session
	refresher Refresher
	timeout   time.Duration
	onLogout  func() // вызывается не более одного раза на терминальное урегулирование
	logger    *slog.Logger
}

// CoordinatorOption настраивает Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRefreshTimeout ограничивает длительность сетевого вызова лидера.
// По умолчанию 15s; на таймауте все ожидающие получают терминальный сбой,
// а не висят бесконечно.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogoutHook задаёт side effect терминального сбоя (редирект на логин и т.п.).
func WithLogoutHook(fn func()) CoordinatorOption {
	return func(c *Coordinator) { c.onLogout = fn }
}

// WithLogger задаёт логгер координатора.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator создаёт координатор поверх сессии и API-клиента.
func NewCoordinator(session *Session, refresher Refresher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		session:   session,
		refresher: refresher,
		timeout:   15 * time.Second,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Refresh вызывается шлюзом после 401 со staleAccess — токеном, который
// сервер отверг. Возвращает access-токен для повтора запроса либо
// терминальную ошибку (ErrSessionExpired), после которой повтор бессмыслен.
//
// Отмена ctx снимает ожидающего без побочных эффектов: сетевой вызов лидера
// живёт в собственном контексте и завершится (или истечёт) независимо,
// но повторно не запускается.
func (c *Coordinator) Refresh(ctx context.Context, staleAccess string) (string, error) {
	const op = "client.coordinator.Refresh"

	c.mu.Lock()

	// Быстрый путь: пока запрос летел с отвергнутым токеном, кто-то уже
	// обновил сессию. Повторяем с текущим токеном без нового refresh.
	if cur := c.session.AccessToken(); cur != "" && cur != staleAccess {
		c.mu.Unlock()
		return cur, nil
	}

	// Refreshing: регистрируемся последователем.
	if c.cur != nil {
		gen := c.cur
		c.mu.Unlock()
		return c.await(ctx, gen)
	}

	// Idle -> Refreshing: становимся лидером.
	gen := &inflight{done: make(chan struct{})}
	c.cur = gen
	refreshToken := c.session.RefreshToken()
	c.mu.Unlock()

	if refreshToken == "" {
		c.settle(gen, "", fmt.Errorf("%s: %w", op, ErrSessionExpired))
		return c.await(ctx, gen)
	}

	// Сетевой вызов — вне мьютекса и в собственном контексте: отмена одного
	// из ожидающих запросов не должна ронять общий refresh.
	go c.lead(gen, refreshToken)

	return c.await(ctx, gen)
}

// lead — работа лидера: единственный сетевой вызов и урегулирование поколения.
func (c *Coordinator) lead(gen *inflight, refreshToken string) {
	const op = "client.coordinator.lead"

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	access, refresh, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		c.logger.Warn("refresh_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		c.settle(gen, "", fmt.Errorf("%s: %w", op, ErrSessionExpired))
		return
	}

	c.session.Set(access, refresh)
	c.settle(gen, access, nil)
}

// settle публикует исход поколения и возвращает координатор в Idle.
// Терминальный исход очищает сессию и ровно один раз дёргает logout-хук.
func (c *Coordinator) settle(gen *inflight, access string, err error) {
	if err != nil {
		c.session.Clear()
	}

	gen.access = access
	gen.err = err

	c.mu.Lock()
	if c.cur == gen {
		c.cur = nil
	}
	c.mu.Unlock()

	close(gen.done)

	if err != nil && c.onLogout != nil {
		c.onLogout()
	}
}

// Invalidate терминально закрывает сессию вне цикла refresh (например,
// когда сервер отверг и только что выданный токен). Side effect тот же,
// что у терминального урегулирования: очистка сессии и logout-хук.
func (c *Coordinator) Invalidate() {
	c.session.Clear()
	if c.onLogout != nil {
		c.onLogout()
	}
}

// await ждёт урегулирования поколения или отмены контекста.
func (c *Coordinator) await(ctx context.Context, gen *inflight) (string, error) {
	select {
	case <-gen.done:
		return gen.access, gen.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
