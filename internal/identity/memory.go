package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type memoryAccount struct {
	profile Profile
	hash    []byte
}

// MemoryProvider is an in-process identity backend with bcrypt hashed
// passwords. It backs local runs and tests.
type MemoryProvider struct {
	cost int

	mu      sync.RWMutex
	byEmail map[string]*memoryAccount
	byID    map[string]*memoryAccount
}

// NewMemoryProvider creates an empty provider. cost <= 0 uses bcrypt.DefaultCost.
func NewMemoryProvider(cost int) *MemoryProvider {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &MemoryProvider{
		cost:    cost,
		byEmail: make(map[string]*memoryAccount),
		byID:    make(map[string]*memoryAccount),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *MemoryProvider) SignIn(_ context.Context, email, password string) (*User, error) {
	m.mu.RLock()
	acct, ok := m.byEmail[normalizeEmail(email)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if acct.profile.Status == StatusDisabled {
		return nil, ErrUserDisabled
	}
	return &User{ID: acct.profile.ID, Email: acct.profile.Email}, nil
}

func (m *MemoryProvider) GetProfile(_ context.Context, userID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	p := acct.profile
	return &p, nil
}

func (m *MemoryProvider) Register(ctx context.Context, reg Registration) (*Profile, error) {
	return m.create(ctx, reg, reg.InitialStatus())
}

// Seed creates an account with an explicit status.
func (m *MemoryProvider) Seed(ctx context.Context, reg Registration, status Status) (*Profile, error) {
	return m.create(ctx, reg, status)
}

func (m *MemoryProvider) create(_ context.Context, reg Registration, status Status) (*Profile, error) {
	email := normalizeEmail(reg.Email)
	if email == "" || reg.Password == "" {
		return nil, fmt.Errorf("identity: email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[email]; exists {
		return nil, ErrEmailInUse
	}
	acct := &memoryAccount{
		profile: Profile{
			ID:            uuid.NewString(),
			Email:         email,
			FullName:      strings.TrimSpace(reg.FullName),
			Phone:         strings.TrimSpace(reg.Phone),
			UserType:      reg.UserType,
			Status:        status,
			Specialty:     strings.TrimSpace(reg.Specialty),
			LicenseNumber: strings.TrimSpace(reg.LicenseNumber),
			CreatedAt:     time.Now().UTC(),
		},
		hash: hash,
	}
	m.byEmail[email] = acct
	m.byID[acct.profile.ID] = acct
	p := acct.profile
	return &p, nil
}

// DemoPassword is the password of every demo account.
const DemoPassword = "careconnect123"

// SeedDemoAccounts registers one account per user type and status.
func SeedDemoAccounts(ctx context.Context, m *MemoryProvider) error {
	seeds := []struct {
		reg    Registration
		status Status
	}{
		{Registration{Email: "patient@careconnect.test", FullName: "Pat Patient", Phone: "+15550100001", UserType: UserTypePatient}, StatusActive},
		{Registration{Email: "doctor@careconnect.test", FullName: "Sarah Johnson", Phone: "+15550100002", UserType: UserTypeDoctor, Specialty: "Cardiology", LicenseNumber: "MD-104233"}, StatusActive},
		{Registration{Email: "pending.doctor@careconnect.test", FullName: "Noah Pending", Phone: "+15550100003", UserType: UserTypeDoctor, Specialty: "Dermatology", LicenseNumber: "MD-208871"}, StatusPending},
		{Registration{Email: "disabled@careconnect.test", FullName: "Dana Disabled", Phone: "+15550100004", UserType: UserTypePatient}, StatusDisabled},
		{Registration{Email: "admin@careconnect.test", FullName: "Ada Admin", UserType: UserTypeAdmin}, StatusActive},
	}
	for _, s := range seeds {
		s.reg.Password = DemoPassword
		if _, err := m.Seed(ctx, s.reg, s.status); err != nil {
			return fmt.Errorf("identity: seed %s: %w", s.reg.Email, err)
		}
	}
	return nil
}

var _ Provider = (*MemoryProvider)(nil)
