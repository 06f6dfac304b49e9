package signup

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

type Account struct {
	UserType        string `json:"user_type"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type Profile struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	Specialty     string `json:"specialty"`
	LicenseNumber string `json:"license_number"`
}

// Service binds the signup flow to an engine.
type Service struct {
	engine *wizard.Engine[Draft]
	sealer *Sealer
}

// NewService builds the signup engine. When opts.Submitter is nil the
// registration goes straight to provider. A nil sealer gets a process-local
// key.
func NewService(provider identity.Provider, sealer *Sealer, opts wizard.Options[Draft]) *Service {
	if sealer == nil {
		var err error
		if sealer, err = NewSealer(""); err != nil {
			panic(err)
		}
	}
	opts.Flow = NewFlow()
	if opts.Submitter == nil {
		opts.Submitter = NewRegistrar(provider, sealer)
	}
	opts.Success = successNotice
	opts.Scrub = func(d *Draft) {
		d.SealedPassword = ""
		d.PasswordCheck = PasswordMissing
	}
	return &Service{engine: wizard.NewEngine(opts), sealer: sealer}
}

func (s *Service) Engine() *wizard.Engine[Draft] { return s.engine }

// Start opens a signup, optionally with the user type preselected.
func (s *Service) Start(ctx context.Context, userType string) (*wizard.State[Draft], error) {
	var d Draft
	if userType != "" {
		t, ok := identity.ParseUserType(userType)
		if !ok || t == identity.UserTypeAdmin {
			return nil, wizard.FieldError("account", "user_type", "must be patient or doctor")
		}
		d.UserType = t
	}
	return s.engine.Start(ctx, "", d)
}

func (s *Service) SetAccount(ctx context.Context, id string, in Account) (*wizard.State[Draft], error) {
	var sealed string
	if in.Password != "" {
		var err error
		if sealed, err = s.sealer.Seal(id, in.Password); err != nil {
			return nil, err
		}
	}
	return s.engine.Update(ctx, id, "", func(d *Draft) error {
		if in.UserType != "" {
			t, ok := identity.ParseUserType(strings.ToLower(strings.TrimSpace(in.UserType)))
			if !ok || t == identity.UserTypeAdmin {
				return wizard.FieldError("account", "user_type", "must be patient or doctor")
			}
			d.UserType = t
		}
		d.Email = strings.TrimSpace(in.Email)
		d.SealedPassword = sealed
		d.PasswordCheck = checkPassword(in.Password, in.ConfirmPassword)
		return nil
	})
}

func (s *Service) SetProfile(ctx context.Context, id string, in Profile) (*wizard.State[Draft], error) {
	return s.engine.Update(ctx, id, "", func(d *Draft) error {
		d.FullName = strings.TrimSpace(in.FullName)
		d.Phone = strings.TrimSpace(in.Phone)
		d.Specialty = strings.TrimSpace(in.Specialty)
		d.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
		return nil
	})
}

func (s *Service) SetTerms(ctx context.Context, id string, accepted bool) (*wizard.State[Draft], error) {
	return s.engine.Update(ctx, id, "", func(d *Draft) error {
		d.AcceptedTerms = accepted
		return nil
	})
}

// View is the session as returned to clients.
type View struct {
	*wizard.State[Draft]
	PasswordSet bool `json:"password_set"`
}

// Redact strips secrets from a session before it leaves the server.
func Redact(s *wizard.State[Draft]) any {
	if s == nil {
		return nil
	}
	cp := *s
	set := cp.Draft.SealedPassword != ""
	cp.Draft.SealedPassword = ""
	return View{State: &cp, PasswordSet: set}
}

func successNotice(s *wizard.State[Draft]) notify.Notification {
	status := identity.StatusActive
	if s.Receipt != nil {
		status = identity.Status(s.Receipt.Details["status"])
	}
	n := notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   "Account created",
		Message: "Welcome to CareConnect. You can now sign in.",
		Email: &notify.EmailMessage{
			To:      s.Draft.Email,
			ToName:  s.Draft.FullName,
			Subject: "Welcome to CareConnect",
			Body:    fmt.Sprintf("Hi %s,\n\nYour CareConnect account is ready. Sign in with %s.\n", s.Draft.FullName, s.Draft.Email),

			Category: notify.CategorySignup,
		},
	}
	if status == identity.StatusPending {
		n.Level = notify.LevelInfo
		n.Title = "Awaiting verification"
		n.Message = "Your doctor account was created and is awaiting license verification. We will email you once it is approved."
		n.Email.Subject = "Your CareConnect doctor account is awaiting verification"
		n.Email.Body = fmt.Sprintf("Hi %s,\n\nThanks for registering. We are verifying license %s and will let you know when your account is active.\n", s.Draft.FullName, s.Draft.LicenseNumber)
	}
	return n
}
