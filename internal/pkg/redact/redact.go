// redact содержит хелперы для безопасного логирования чувствительных данных.
// Токены и пароли в логи не попадают никогда; e-mail маскируется до префикса.
package redact

import "strings"

// Email маскирует локальную часть адреса, сохраняя домен:
// "foobar@example.com" -> "fo***@example.com". Невалидный адрес -> "***".
func Email(s string) string {
	at := strings.Count(s, "@")
	if at != 1 {
		return "***"
	}

	idx := strings.Index(s, "@")
	local, domain := s[:idx], s[idx+1:]

	r := []rune(local)
	if len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}

	return "***@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
