package session

import (
	"context"
	"net/http"

	"ionizer_portal/platform/config"
	"ionizer_portal/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextEntryKey is the gin context key for the request's *Entry.
const ContextEntryKey = "sessionEntry"

// Middleware binds each request to its browser session. A missing or
// malformed cookie gets a fresh key; the entry is acquired (and
// initialized on first use) before the handler runs.
func Middleware(reg *Registry, cfg config.CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := c.Cookie(cfg.GetSessionCookieName())
		if err != nil || !validKey(key) {
			key = uuid.NewString()
		}
		// Refresh the cookie on every request so its lifetime slides with use.
		setCookie(c, cfg, key)

		ctx := context.WithValue(c.Request.Context(), logger.SessionKeyKey, key)
		c.Request = c.Request.WithContext(ctx)

		c.Set(ContextEntryKey, reg.Acquire(ctx, key))
		c.Next()
	}
}

// EntryFrom returns the entry bound by Middleware.
func EntryFrom(c *gin.Context) (*Entry, bool) {
	v, ok := c.Get(ContextEntryKey)
	if !ok {
		return nil, false
	}
	e, ok := v.(*Entry)
	return e, ok
}

func validKey(key string) bool {
	id, err := uuid.Parse(key)
	return err == nil && id.Version() == 4
}

func setCookie(c *gin.Context, cfg config.CookieConfig, key string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.GetSessionCookieName(),
		Value:    key,
		Path:     cfg.GetSessionCookiePath(),
		Domain:   cfg.GetSessionCookieDomain(),
		MaxAge:   int(cfg.GetSessionStorageTTL().Seconds()),
		Secure:   cfg.GetSessionCookieSecure(),
		HttpOnly: true,
		SameSite: cfg.GetSessionCookieSameSite(),
	})
}
