package domain

import "time"

// User represents an account. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserInput carries the fields of an account registration request
type UserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Identity is the authenticated identity reported to clients.
// A logged-out caller receives the zero value with IsLoggedIn false.
type Identity struct {
	IsLoggedIn bool   `json:"isLoggedIn"`
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}
