package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newSeededProvider(t *testing.T) *MemoryProvider {
	t.Helper()
	p := NewMemoryProvider(bcrypt.MinCost)
	require.NoError(t, SeedDemoAccounts(context.Background(), p))
	return p
}

func TestMemoryProviderSignIn(t *testing.T) {
	p := newSeededProvider(t)
	ctx := context.Background()

	user, err := p.SignIn(ctx, " Patient@CareConnect.test ", DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, "patient@careconnect.test", user.Email)

	_, err = p.SignIn(ctx, "patient@careconnect.test", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@careconnect.test", DemoPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "disabled@careconnect.test", DemoPassword)
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestMemoryProviderRegister(t *testing.T) {
	p := newSeededProvider(t)
	ctx := context.Background()

	doc, err := p.Register(ctx, Registration{
		Email:         "new.doctor@careconnect.test",
		Password:      "supersecret",
		UserType:      UserTypeDoctor,
		FullName:      "New Doctor",
		Specialty:     "Pediatrics",
		LicenseNumber: "MD-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, doc.Status)

	got, err := p.GetProfile(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pediatrics", got.Specialty)

	patient, err := p.Register(ctx, Registration{Email: "new.patient@careconnect.test", Password: "supersecret", UserType: UserTypePatient})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, patient.Status)

	_, err = p.Register(ctx, Registration{Email: "PATIENT@careconnect.test", Password: "x", UserType: UserTypePatient})
	assert.ErrorIs(t, err, ErrEmailInUse)

	_, err = p.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseUserType(t *testing.T) {
	ut, ok := ParseUserType("doctor")
	assert.True(t, ok)
	assert.Equal(t, UserTypeDoctor, ut)
	_, ok = ParseUserType("nurse")
	assert.False(t, ok)
}
