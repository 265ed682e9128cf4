package util

import "strings"

// MaskSecret deja ver solo el largo aproximado: "Pusilkom123" => "P*********3".
// Secretos de 4 caracteres o menos quedan totalmente tapados.
func MaskSecret(s string) string {
	r := []rune(s)
	switch {
	case len(r) == 0:
		return ""
	case len(r) <= 4:
		return strings.Repeat("*", len(r))
	}
	return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
}

// MaskEmail acorta usuario y primer label del dominio para logs:
// "user01@example.com" => "u…@e….com".
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		if s == "" {
			return ""
		}
		if len(s) <= 3 {
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	labels := strings.Split(dom, ".")
	if len(labels[0]) > 1 {
		labels[0] = labels[0][:1] + "…"
	}
	return user + "@" + strings.Join(labels, ".")
}
