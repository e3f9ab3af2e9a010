package session

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CookieKV maps session keys onto long-lived browser cookies for one
// request/response pair. Values written during the request are visible to later
// reads in the same request.
type CookieKV struct {
	r       *http.Request
	w       http.ResponseWriter
	maxAge  time.Duration
	secure  bool
	pending map[string]*string
}

// NewCookieKV binds a cookie store to the request and its response writer.
func NewCookieKV(w http.ResponseWriter, r *http.Request, maxAge time.Duration, secure bool) *CookieKV {
	return &CookieKV{
		r:       r,
		w:       w,
		maxAge:  maxAge,
		secure:  secure,
		pending: make(map[string]*string),
	}
}

// CookieName converts a namespaced key ("vmail:friendId") into a valid cookie name.
func CookieName(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}

// Get reads a value written earlier in this request, falling back to the request cookies.
func (c *CookieKV) Get(key string) (string, bool) {
	if v, ok := c.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	cookie, err := c.r.Cookie(CookieName(key))
	if err != nil {
		return "", false
	}
	value, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set emits a persistent cookie carrying value.
func (c *CookieKV) Set(key, value string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName(key),
		Value:    url.QueryEscape(value),
		Path:     "/",
		MaxAge:   int(c.maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.pending[key] = &value
	return nil
}

// Delete expires the cookie for key.
func (c *CookieKV) Delete(key string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName(key),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.pending[key] = nil
	return nil
}
