package models

import "time"

// Holiday is a global entity: every user receives the same holiday feed.
// Only the sync engine's administrative clients mutate holidays; regular
// clients see them in server updates.
type Holiday struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
