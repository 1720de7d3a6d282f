package models

import "time"

// User represents an account that owns datasets, experts and credentials.
// All owned entities are namespaced by the user ID and removed when the
// user is deleted (cascade).
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required,min=1,max=128"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
