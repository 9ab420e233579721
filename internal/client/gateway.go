package client

import (
	"fmt"
	"net/http"
)

// Gateway оборачивает исходящие запросы бэк-офисного клиента:
// подставляет текущий access-токен, на 401 инициирует refresh через
// координатор и повторяет идентичный запрос ровно один раз.
//
// Больше одного повтора на исходный запрос не бывает: если сервер
// отвергает и новый токен, сессия терминально закрывается — это защита
// от бесконечного цикла retry.
type Gateway struct {
	http    Doer
	session *Session
	coord   *Coordinator
}

// NewGateway создаёт шлюз. httpClient == nil -> http.DefaultClient.
func NewGateway(session *Session, coord *Coordinator, httpClient Doer) *Gateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Gateway{
		http:    httpClient,
		session: session,
		coord:   coord,
	}
}

// Do отправляет запрос с текущим access-токеном.
// Требование к повторяемым запросам: тело либо отсутствует, либо
// req.GetBody != nil (http.NewRequest выставляет его для буферных тел).
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	const op = "client.gateway.Do"

	access := g.session.AccessToken()

	resp, err := g.send(req, access)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	newAccess, err := g.coord.Refresh(req.Context(), access)
	if err != nil {
		// Терминальный сбой: сессия уже очищена координатором.
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err = g.send(req, newAccess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Сервер отверг и свежий токен: дальше повторять нельзя.
		_ = resp.Body.Close()
		g.coord.Invalidate()
		return nil, fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	return resp, nil
}

// send отправляет копию запроса с заданным токеном.
func (g *Gateway) send(req *http.Request, access string) (*http.Response, error) {
	r := req.Clone(req.Context())

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}

	if access != "" {
		r.Header.Set("Authorization", "Bearer "+access)
	}

	return g.http.Do(r)
}
