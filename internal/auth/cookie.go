package auth

import (
	"net/http"
	"strings"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "JWT-TOKEN"

// TokenFromRequest returns the value of the first cookie called name.
func TokenFromRequest(r *http.Request, name string) (string, bool) {
	if r == nil || name == "" {
		return "", false
	}
	for _, c := range r.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// CookieMap is a multi-valued cookie view keyed by cookie name.
type CookieMap map[string][]string

// CookieMapFromHeader parses every Cookie header in h.
func CookieMapFromHeader(h http.Header) CookieMap {
	m := make(CookieMap)
	for _, line := range h.Values("Cookie") {
		cookies, err := http.ParseCookie(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		for _, c := range cookies {
			m[c.Name] = append(m[c.Name], c.Value)
		}
	}
	return m
}

// First returns the first value stored for name.
func (m CookieMap) First(name string) (string, bool) {
	values := m[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// TokenFromCookieMap returns the first value of the cookie called name.
func TokenFromCookieMap(m CookieMap, name string) (string, bool) {
	if m == nil || name == "" {
		return "", false
	}
	return m.First(name)
}

// AttachToken sets the token cookie on the response. It must run before the
// response body is written.
func AttachToken(w http.ResponseWriter, name, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}

// ClearToken expires the token cookie on the client.
func ClearToken(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
