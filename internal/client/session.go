// client — бэк-офисный клиент auth-ядра: хранение пары токенов,
// сериализация конкурентных refresh и прозрачный повтор запросов.
//
// Серверная часть (service/transport) и клиентская (этот пакет) — один
// протокол: корректность прозрачного refresh зависит от согласованной
// семантики ротации с обеих сторон.
package client

import "sync"

// Session — текущая пара токенов одного клиентского процесса.
// Безопасна для конкурентного использования; очищается целиком
// при logout или терминальном сбое refresh.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewSession создаёт пустую (неаутентифицированную) сессию.
func NewSession() *Session {
	return &Session{}
}

// Set атомарно заменяет пару токенов.
func (s *Session) Set(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = access, refresh
}

// AccessToken возвращает текущий access-токен ("" — не аутентифицированы).
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken возвращает текущий refresh-токен.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Clear сбрасывает сессию в неаутентифицированное состояние.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = "", ""
}
