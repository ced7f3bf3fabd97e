// Package domain contains entity without logic, just meta-data
package domain

import "strings"

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
)

type UserID string

// User is the resolved identity of a connection plus the optional profile
// fields kept by the identity-record store.
type User struct {
	ID        UserID `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id string, firstName, lastName string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NewValidationError("id", "required")
	}
	if len(id) > MaxUserIDLen {
		return User{}, NewValidationError("id", "too long")
	}
	u := User{ID: UserID(id)}
	if err := u.SetName(firstName, lastName); err != nil {
		return User{}, err
	}
	return u, nil
}

func (u *User) SetName(firstName, lastName string) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if len(firstName) > MaxUsernameLen {
		return NewValidationError("firstName", "too long")
	}
	if len(lastName) > MaxUsernameLen {
		return NewValidationError("lastName", "too long")
	}
	u.FirstName = firstName
	u.LastName = lastName
	return nil
}

// DisplayName is "first last"; the id stands in when no name is known.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return string(u.ID)
	}
	return name
}
