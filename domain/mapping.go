package domain

import "time"

// Mapping statuses as persisted in the authoritative store.
const (
	MappingStatusActive      = "active"
	MappingStatusDeactivated = "deactivated"
)

// Mapping ties a user to a cohort they are enrolled in.
type Mapping struct {
	UserID    string    `json:"user_id"`
	CohortID  string    `json:"cohort_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Mapping) IsActive() bool {
	return m != nil && m.Status == MappingStatusActive
}
