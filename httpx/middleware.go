package httpx

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/adeilh/go-cachet/session"
)

const sessionContextKey = "cachet.session"

// SessionMiddleware wires a session.Store into echo's request pipeline:
// the session is loaded before the handler runs and, when the handler
// touched it, saved (or destroyed) afterwards. The store is injected
// explicitly; nothing is read from process-wide state.
func SessionMiddleware(store *session.Store, opts ...SessionOption) echo.MiddlewareFunc {
	cfg := defaultSessionOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if cookie, err := c.Cookie(cfg.CookieName); err == nil {
				id = cookie.Value
			}
			fresh := id == ""
			if fresh {
				id = uuid.NewString()
			}

			ctx := c.Request().Context()
			data, flash := store.Load(ctx, id)
			sess := &Session{
				id:    id,
				isNew: fresh,
				data:  data,
				flash: flash,
			}
			c.Set(sessionContextKey, sess)

			err := next(c)

			switch {
			case sess.destroyed:
				if derr := store.Destroy(ctx, id); derr != nil && err == nil {
					err = derr
				}
				c.SetCookie(expiredCookie(cfg))
			case sess.dirty:
				if serr := store.Save(ctx, id, sess.data, sess.flash, cfg.Lifetime); serr != nil && err == nil {
					err = serr
				}
				c.SetCookie(sessionCookie(cfg, id))
			}
			return err
		}
	}
}

// SessionFromContext returns the request's Session handle, or nil when the
// middleware is not installed.
func SessionFromContext(c echo.Context) *Session {
	sess, _ := c.Get(sessionContextKey).(*Session)
	return sess
}

func sessionCookie(cfg SessionOptions, id string) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    id,
		Path:     cfg.Path,
		MaxAge:   int(cfg.Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}

func expiredCookie(cfg SessionOptions) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}
