package domain

import "time"

// User statuses as persisted in the authoritative store.
const (
	UserStatusActive      = "active"
	UserStatusDeactivated = "deactivated"
)

// User represents a learner or staff identity in the platform.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
