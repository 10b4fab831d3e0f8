package models

import "time"

// Reminder is a user-scoped entity synchronized between devices.
// The ID is client-supplied (a UUID generated on the originating device)
// so that a retried create targets the same row.
type Reminder struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	RemindAt  *time.Time `json:"remind_at,omitempty"`
	Done      bool       `json:"done"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
