// handlers реализует REST-эндпойнты auth-ядра.
// Здесь выполняется только разбор запросов и маппинг данных/ошибок доменного
// слоя (service) в HTTP. Вся валидация и бизнес-логика — в пакете service.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vostrikovaa/tourdesk/internal/service"
)

// Handlers агрегирует зависимости REST-слоя.
type Handlers struct {
	service *service.Service
}

func New(s *service.Service) *Handlers {
	return &Handlers{service: s}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
