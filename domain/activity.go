package domain

import "time"

// ActivityKind enumerates the possible activity states of a live session.
type ActivityKind string

const (
	ActivityActive      ActivityKind = "ACTIVE"
	ActivityWarning     ActivityKind = "WARNING"
	ActivityTimeout     ActivityKind = "TIMEOUT"
	ActivityMaxDuration ActivityKind = "MAX_DURATION_EXCEEDED"
)

// ActivityState is the derived activity verdict for a session. MinutesRemaining
// is meaningful only when Kind is ActivityWarning.
type ActivityState struct {
	Kind             ActivityKind `json:"kind"`
	MinutesRemaining int          `json:"minutes_remaining,omitempty"`
}

// Terminal reports whether the state forces session closure.
func (s ActivityState) Terminal() bool {
	return s.Kind == ActivityTimeout || s.Kind == ActivityMaxDuration
}

// Action is a recorded learner action, the raw material for activity tracking.
type Action struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	SubjectID string    `json:"subject_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
