package team

import "time"

// Team is a coached roster owned by a single user account.
type Team struct {
	ID          string
	OwnerUserID string
	Name        string
	CreatedAt   time.Time
}
