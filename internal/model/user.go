// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User is a registered account. Username is the primary key and never changes.
//
// PasswordHash is tagged json:"-" so it can never leak through an encoder,
// even if a handler accidentally writes a whole User.
//
// WHY *time.Time FOR LastLoginAt?
// A user who registered through the model layer but never logged in has no
// last login. A nil pointer encodes as JSON null, which is what clients expect.
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone"`
	JoinAt       time.Time  `json:"join_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// UserSummary is the public projection of a user: the fields that appear in
// user listings and in the expanded parties of a message.
type UserSummary struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Summary projects a User down to its public fields.
func (u *User) Summary() UserSummary {
	return UserSummary{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
	}
}

// UserDetail is what a user sees about themselves.
type UserDetail struct {
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone"`
	JoinAt      time.Time  `json:"join_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Detail projects a User to the self-view (everything except the hash).
func (u *User) Detail() UserDetail {
	return UserDetail{
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		JoinAt:      u.JoinAt,
		LastLoginAt: u.LastLoginAt,
	}
}
