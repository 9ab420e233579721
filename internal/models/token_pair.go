package models

import "time"

// TokenPair — пара токенов, выдаваемая при аутентификации/обновлении.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API; на сервере не
//     хранится и не отзывается, валидность определяется подписью и сроком;
//   - RefreshToken — долгоживущий JWT, предъявляемый только для выпуска
//     новой пары; его jti учитывается в серверном реестре;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
