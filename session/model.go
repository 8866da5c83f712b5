package session

// Session is the server-side state behind one opaque session identifier.
// A zero UserID marks an anonymous session; binding a user happens only
// through regeneration on login, never by mutating an existing record.
type Session struct {
	SessionID string
	UserID    string

	// CSRFSecret is the session-scoped anti-forgery secret. Only the
	// currently stored value validates; rotation invalidates history.
	CSRFSecret [32]byte

	CreatedAt  int64
	DeadlineAt int64 // absolute lifetime deadline (unix); 0 = uncapped
	LastSeenAt int64
}

// Anonymous reports whether the session has no bound user.
func (s *Session) Anonymous() bool {
	return s == nil || s.UserID == ""
}
