package domain

import "time"

// Cohort represents a scheduled run of a program that users enroll into.
type Cohort struct {
	ID        string    `json:"id"`
	ProgramID string    `json:"program_id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEnded reports whether the cohort calendar is over at the reference time.
// A zero EndDate means the cohort is open-ended.
func (c *Cohort) HasEnded(reference time.Time) bool {
	if c == nil {
		return true
	}
	if c.EndDate.IsZero() {
		return false
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !c.EndDate.After(reference)
}
