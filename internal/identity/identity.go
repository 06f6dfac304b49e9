// Package identity is the boundary to the external account service that
// authenticates users and stores their profiles.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrUserDisabled       = errors.New("identity: user disabled")
	ErrNotFound           = errors.New("identity: profile not found")
	ErrEmailInUse         = errors.New("identity: email already registered")
	ErrNetwork            = errors.New("identity: network error")
)

// UserType decides which dashboard a user lands on.
type UserType string

const (
	UserTypePatient UserType = "patient"
	UserTypeDoctor  UserType = "doctor"
	UserTypeAdmin   UserType = "admin"
)

// ParseUserType reports whether s names a known user type.
func ParseUserType(s string) (UserType, bool) {
	switch t := UserType(s); t {
	case UserTypePatient, UserTypeDoctor, UserTypeAdmin:
		return t, true
	}
	return "", false
}

// Status is the account lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusDisabled Status = "disabled"
)

// User is the authenticated identity returned by SignIn.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the account record kept by the identity service.
type Profile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Phone         string    `json:"phone,omitempty"`
	UserType      UserType  `json:"user_type"`
	Status        Status    `json:"status"`
	Specialty     string    `json:"specialty,omitempty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Registration is a new account request. Doctors start pending until their
// license is verified.
type Registration struct {
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	UserType      UserType `json:"user_type"`
	FullName      string   `json:"full_name"`
	Phone         string   `json:"phone,omitempty"`
	Specialty     string   `json:"specialty,omitempty"`
	LicenseNumber string   `json:"license_number,omitempty"`
}

// InitialStatus is the status a new account of this registration gets.
func (r Registration) InitialStatus() Status {
	if r.UserType == UserTypeDoctor {
		return StatusPending
	}
	return StatusActive
}

// Provider is implemented by identity backends.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	Register(ctx context.Context, reg Registration) (*Profile, error)
}
