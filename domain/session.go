package domain

import "time"

// Session represents one bounded period of authenticated activity, bound to a
// user and a cohort. Rows are never deleted; termination only sets EndedAt.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	CohortID  string     `json:"cohort_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// IsLive reports whether the session row has not been closed yet. Activity
// timeouts and standing checks are layered on top by the validation engine.
func (s *Session) IsLive() bool {
	return s != nil && s.EndedAt == nil
}

// RegistryEntry is the cache-resident record of a user's currently sanctioned
// session and device. At most one entry exists per user when single device
// login is enforced.
type RegistryEntry struct {
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	CohortID     string    `json:"cohort_id"`
	Fingerprint  string    `json:"fingerprint"`
	RegisteredAt time.Time `json:"registered_at"`
}
