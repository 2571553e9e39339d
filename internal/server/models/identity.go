// Package models contains the persistence-level types shared by the server
// repositories and services.
package models

import "time"

// Identity is one registered principal. Email is unique across all live
// records; the constraint is enforced by the credential store at write time.
//
// SecretHash is the bcrypt hash of the principal's secret. It never leaves
// the store/service boundary: the JSON tag keeps it out of every response
// body, and list queries do not even select the column.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	SecretHash  []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
