package transport

type SignInRequest struct {
	UserID      string `json:"user_id"`
	CohortID    string `json:"cohort_id"`
	Fingerprint string `json:"fingerprint"`
}

type CohortSelectRequest struct {
	UserID      string `json:"user_id"`
	CohortID    string `json:"cohort_id"`
	Fingerprint string `json:"fingerprint"`
}

type LogoutRequest struct {
	UserID    string `json:"user_id"`
	CohortID  string `json:"cohort_id"`
	SessionID string `json:"session_id"`
}

type SignUpRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type AttemptRequest struct {
	ConceptID string `json:"concept_id"`
	Answer    string `json:"answer"`
	StartedAt string `json:"started_at"`
}

type ProgressUpdateRequest struct {
	ConceptID string `json:"concept_id"`
	Completed bool   `json:"completed"`
}

type DeactivateMappingRequest struct {
	UserID   string `json:"user_id"`
	CohortID string `json:"cohort_id"`
}

type CacheEvictRequest struct {
	UserID    string `json:"user_id"`
	CohortID  string `json:"cohort_id"`
	SessionID string `json:"session_id"`
}
