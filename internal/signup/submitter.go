package signup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/submission"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

// Registrar submits a completed signup to the identity service.
type Registrar struct {
	provider identity.Provider
	sealer   *Sealer
	clock    func() time.Time
}

// NewRegistrar opens sealed passwords with sealer, which must be the one
// the service sealed them with.
func NewRegistrar(provider identity.Provider, sealer *Sealer) *Registrar {
	if provider == nil || sealer == nil {
		panic("signup: identity provider and sealer required")
	}
	return &Registrar{provider: provider, sealer: sealer, clock: func() time.Time { return time.Now().UTC() }}
}

func (r *Registrar) Submit(ctx context.Context, req wizard.SubmitRequest[Draft]) (*wizard.Receipt, error) {
	// A session sealed by a since-restarted process cannot be opened. The
	// user has to enter the password again.
	password, err := r.sealer.Open(req.SessionID, req.Draft.SealedPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", wizard.ErrRejected, err)
	}
	profile, err := r.provider.Register(ctx, req.Draft.registration(password))
	switch {
	case errors.Is(err, identity.ErrEmailInUse):
		return nil, fmt.Errorf("%w: %w", wizard.ErrRejected, err)
	case errors.Is(err, identity.ErrNetwork):
		return nil, fmt.Errorf("%w: %w", wizard.ErrNetwork, err)
	case err != nil:
		return nil, err
	}
	now := r.clock()
	return &wizard.Receipt{
		Reference:   submission.Reference(submission.PrefixUser, now),
		SubmittedAt: now,
		Details: map[string]string{
			"user_id":   profile.ID,
			"user_type": string(profile.UserType),
			"status":    string(profile.Status),
		},
	}, nil
}

var _ wizard.Submitter[Draft] = (*Registrar)(nil)
