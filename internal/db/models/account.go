package models

import "time"

// User is an authenticated end user. AuthID is the subject identifier issued
// by the external identity provider; ID is the internal key everything else
// hangs off. Rows are created just-in-time by the auth middleware and the
// plan is only ever changed by the billing collaborator, never by this core.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	AuthID    string `gorm:"uniqueIndex;not null"`
	Name      string
	Email     string
	PlanID    uint `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
