// Package signup implements the account registration wizard for patients
// and doctors.
package signup

import (
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

const (
	FlowName          = "signup"
	MinPasswordLength = 8
)

// Draft is the in-progress registration. The password is sealed before it
// is stored and the confirmation is reduced to PasswordCheck, so neither is
// ever kept in the clear.
type Draft struct {
	UserType       identity.UserType `json:"user_type,omitempty"`
	Email          string            `json:"email,omitempty"`
	SealedPassword string            `json:"sealed_password,omitempty"`
	PasswordCheck  PasswordCheck     `json:"password_check,omitempty"`
	FullName       string            `json:"full_name,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	Specialty      string            `json:"specialty,omitempty"`
	LicenseNumber  string            `json:"license_number,omitempty"`
	AcceptedTerms  bool              `json:"accepted_terms"`
}

// PasswordCheck is the outcome of checking a password against its
// confirmation when the account step was saved.
type PasswordCheck string

const (
	PasswordMissing     PasswordCheck = ""
	PasswordTooShort    PasswordCheck = "too_short"
	PasswordUnconfirmed PasswordCheck = "unconfirmed"
	PasswordMismatch    PasswordCheck = "mismatch"
	PasswordOK          PasswordCheck = "ok"
)

func checkPassword(password, confirm string) PasswordCheck {
	switch {
	case password == "":
		return PasswordMissing
	case len(password) < MinPasswordLength:
		return PasswordTooShort
	case confirm == "":
		return PasswordUnconfirmed
	case confirm != password:
		return PasswordMismatch
	}
	return PasswordOK
}

func (d Draft) registration(password string) identity.Registration {
	reg := identity.Registration{
		Email:    strings.ToLower(d.Email),
		Password: password,
		UserType: d.UserType,
		FullName: d.FullName,
		Phone:    d.Phone,
	}
	if d.UserType == identity.UserTypeDoctor {
		reg.Specialty = d.Specialty
		reg.LicenseNumber = d.LicenseNumber
	}
	return reg
}

// NewFlow defines the signup steps.
func NewFlow() *wizard.Flow[Draft] {
	return wizard.NewFlow(FlowName,
		wizard.Step[Draft]{Key: "account", Title: "Create your account", Validate: validateAccount},
		wizard.Step[Draft]{Key: "profile", Title: "Tell us about you", Validate: validateProfile},
		wizard.Step[Draft]{Key: "terms", Title: "Review and accept", Validate: func(d Draft) error {
			return wizard.Check("terms").When(!d.AcceptedTerms, "accepted_terms", "must be accepted").Err()
		}},
	)
}

func validateAccount(d Draft) error {
	c := wizard.Check("account").
		Require("user_type", string(d.UserType)).
		Require("email", d.Email).
		Email("email", d.Email)
	if !c.Has("user_type") && d.UserType != identity.UserTypePatient && d.UserType != identity.UserTypeDoctor {
		c.Fail("user_type", "must be patient or doctor")
	}

	check := d.PasswordCheck
	if d.SealedPassword == "" {
		check = PasswordMissing
	}
	switch check {
	case PasswordMissing:
		c.Fail("password", "is required")
		c.Fail("confirm_password", "is required")
	case PasswordTooShort:
		c.Fail("password", "must be at least 8 characters")
	case PasswordUnconfirmed:
		c.Fail("confirm_password", "is required")
	case PasswordMismatch:
		c.Fail("confirm_password", "does not match password")
	}
	return c.Err()
}

func validateProfile(d Draft) error {
	c := wizard.Check("profile").
		Require("full_name", d.FullName).
		Require("phone", d.Phone).
		Phone("phone", d.Phone)
	if d.UserType == identity.UserTypeDoctor {
		c.Require("specialty", d.Specialty).Require("license_number", d.LicenseNumber)
	}
	return c.Err()
}
