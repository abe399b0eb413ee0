// Package httpx binds the session store to the echo web framework: a
// middleware loads the request's session before the handler runs and
// persists it afterwards, and handlers work against a request-scoped
// Session handle instead of the store itself.
package httpx

// Session is the per-request view of one session's data and flash
// mappings. It is not safe for concurrent use; each request gets its own
// instance from the middleware.
type Session struct {
	id        string
	isNew     bool
	dirty     bool
	destroyed bool
	data      map[string]any
	flash     map[string]any
}

// ID returns the session id carried by the request cookie.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the request arrived without a usable session.
func (s *Session) IsNew() bool { return s.isNew }

// Get returns the durable value under key, if any.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set stores a durable value under key.
func (s *Session) Set(key string, value any) {
	s.data[key] = value
	s.dirty = true
}

// Delete removes the durable value under key.
func (s *Session) Delete(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
}

// Flash stores a one-read value under key.
func (s *Session) Flash(key string, value any) {
	s.flash[key] = value
	s.dirty = true
}

// Consume returns the flash value under key and removes it, so the next
// request no longer sees it.
func (s *Session) Consume(key string) (any, bool) {
	v, ok := s.flash[key]
	if ok {
		delete(s.flash, key)
		s.dirty = true
	}
	return v, ok
}

// Destroy marks the session for deletion; the middleware removes the
// payload and expires the cookie after the handler returns.
func (s *Session) Destroy() {
	s.destroyed = true
}
