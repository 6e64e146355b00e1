package domain

// DenialCode classifies why a request was denied (or warned) by the
// validation engine. All codes except InactivityWarning are terminal: the
// caller must re-authenticate.
type DenialCode string

const (
	// Structural.
	CodeInvalidSession     DenialCode = "INVALID_SESSION"
	CodeInvalidSessionData DenialCode = "INVALID_SESSION_DATA"

	// Identity and standing.
	CodeUserNotFound            DenialCode = "USER_NOT_FOUND"
	CodeUserDeactivated         DenialCode = "USER_DEACTIVATED"
	CodeCohortAccessDeactivated DenialCode = "COHORT_ACCESS_DEACTIVATED"
	CodeCohortNotFound          DenialCode = "COHORT_NOT_FOUND"
	CodeCohortEnded             DenialCode = "COHORT_ENDED"

	// Session lifecycle.
	CodeSessionNotFound    DenialCode = "SESSION_NOT_FOUND"
	CodeSessionExpired     DenialCode = "SESSION_EXPIRED"
	CodeSessionTimeout     DenialCode = "SESSION_TIMEOUT"
	CodeMaxDurationTimeout DenialCode = "MAX_DURATION_TIMEOUT"

	// Device / single login.
	CodeSessionTerminatedNewLogin DenialCode = "SESSION_TERMINATED_NEW_LOGIN"
	CodeDeviceMismatch            DenialCode = "DEVICE_MISMATCH"
	CodeDeviceValidationError     DenialCode = "DEVICE_VALIDATION_ERROR"

	// Soft: the request proceeds, the client should prompt re-authentication.
	CodeInactivityWarning DenialCode = "INACTIVITY_WARNING"
)

// Verdict is the engine's per-request decision. Immutable once produced;
// only clean valid verdicts (Valid && !Warning) are ever cached.
type Verdict struct {
	Valid            bool       `json:"valid"`
	Warning          bool       `json:"warning"`
	ErrorCode        DenialCode `json:"error_code,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	UserID           string     `json:"user_id,omitempty"`
	CohortID         string     `json:"cohort_id,omitempty"`
	SessionID        string     `json:"session_id,omitempty"`
	MinutesRemaining int        `json:"minutes_remaining,omitempty"`
}

// Cacheable reports whether the verdict may be stored in the verdict cache.
// Warnings and denials must always be recomputed so that recovery and fresh
// failures are observed promptly.
func (v Verdict) Cacheable() bool {
	return v.Valid && !v.Warning
}

// ValidVerdict builds a clean valid verdict for the identity tuple.
func ValidVerdict(userID, cohortID, sessionID string) Verdict {
	return Verdict{
		Valid:     true,
		UserID:    userID,
		CohortID:  cohortID,
		SessionID: sessionID,
	}
}

// WarningVerdict builds a valid-with-warning verdict. The request proceeds.
func WarningVerdict(userID, cohortID, sessionID string, minutesRemaining int) Verdict {
	return Verdict{
		Valid:            true,
		Warning:          true,
		ErrorCode:        CodeInactivityWarning,
		ErrorMessage:     "session will expire soon due to inactivity",
		UserID:           userID,
		CohortID:         cohortID,
		SessionID:        sessionID,
		MinutesRemaining: minutesRemaining,
	}
}

// InvalidVerdict builds a terminal denial verdict.
func InvalidVerdict(code DenialCode, message string) Verdict {
	return Verdict{
		Valid:        false,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}
