package model

import (
	"github.com/google/uuid"
)

// UserContact is the slice of a user record needed to notify them offline.
type UserContact struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	Email       string    `json:"email" db:"email"`
	PhoneNumber *string   `json:"phone_number" db:"phone_number"`
}

// Phone returns the phone number or "" when unset.
func (u *UserContact) Phone() string {
	if u.PhoneNumber == nil {
		return ""
	}
	return *u.PhoneNumber
}
