package auth

import "time"

// User is an account document. PasswordHash never leaves this package.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity is what the rest of the system sees of a logged-in user: an
// opaque id plus a display name.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}
