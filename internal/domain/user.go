package domain

import "time"

// User represents an authenticated user. An account is created either by
// explicit registration (password_hash set) or by a first Google login
// (google_id set); the two can coexist on one row.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash *string   `json:"-" db:"password_hash"`
	GoogleID     *string   `json:"-" db:"google_id"`
	AvatarURL    *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
