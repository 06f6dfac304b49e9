// Package catalog holds the read-only selection registry: doctors,
// consultation time slots and pharmacy medicines.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/catalog.yaml
var defaultFixture []byte

var (
	// ErrNotFound is returned when an entity id is not in the registry.
	ErrNotFound = errors.New("catalog: entity not found")

	// ErrUnavailable is returned when an entity exists but cannot be selected.
	ErrUnavailable = errors.New("catalog: entity unavailable")
)

// Doctor is a bookable practitioner.
type Doctor struct {
	ID                   string   `yaml:"id" json:"id"`
	Name                 string   `yaml:"name" json:"name"`
	Specialty            string   `yaml:"specialty" json:"specialty"`
	Hospital             string   `yaml:"hospital" json:"hospital"`
	ExperienceYears      int      `yaml:"experience_years" json:"experience_years"`
	Rating               float64  `yaml:"rating" json:"rating"`
	ConsultationFeeCents int64    `yaml:"consultation_fee_cents" json:"consultation_fee_cents"`
	Languages            []string `yaml:"languages" json:"languages,omitempty"`
	Available            bool     `yaml:"available" json:"available"`
}

// TimeSlot is a consultation start time offered on every day, e.g. "10:00 AM".
type TimeSlot struct {
	ID        string `yaml:"id" json:"id"`
	Available bool   `yaml:"available" json:"available"`
}

// Medicine is a pharmacy product.
type Medicine struct {
	ID                   string `yaml:"id" json:"id"`
	Name                 string `yaml:"name" json:"name"`
	Category             string `yaml:"category" json:"category"`
	Manufacturer         string `yaml:"manufacturer" json:"manufacturer"`
	PriceCents           int64  `yaml:"price_cents" json:"price_cents"`
	RequiresPrescription bool   `yaml:"requires_prescription" json:"requires_prescription"`
	Available            bool   `yaml:"available" json:"available"`
}

type fixture struct {
	Doctors   []Doctor   `yaml:"doctors"`
	TimeSlots []TimeSlot `yaml:"time_slots"`
	Medicines []Medicine `yaml:"medicines"`
}

// Registry is an immutable view over the loaded fixture. Accessors return
// copies so callers cannot mutate shared state.
type Registry struct {
	doctors   []Doctor
	slots     []TimeSlot
	medicines []Medicine

	doctorIdx   map[string]int
	slotIdx     map[string]int
	medicineIdx map[string]int
}

// Default loads the fixture compiled into the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultFixture))
}

// LoadFile loads a registry from a YAML file on disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open fixture: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML fixture.
func Load(r io.Reader) (*Registry, error) {
	var fx fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("catalog: decode fixture: %w", err)
	}
	return New(fx.Doctors, fx.TimeSlots, fx.Medicines)
}

// New builds a registry from explicit lists.
func New(doctors []Doctor, slots []TimeSlot, medicines []Medicine) (*Registry, error) {
	reg := &Registry{
		doctorIdx:   make(map[string]int, len(doctors)),
		slotIdx:     make(map[string]int, len(slots)),
		medicineIdx: make(map[string]int, len(medicines)),
	}
	for _, d := range doctors {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("catalog: doctor %q has no id", d.Name)
		}
		if _, dup := reg.doctorIdx[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate doctor id %q", d.ID)
		}
		if d.ConsultationFeeCents <= 0 {
			return nil, fmt.Errorf("catalog: doctor %q has non-positive fee", d.ID)
		}
		d.Languages = append([]string(nil), d.Languages...)
		reg.doctorIdx[d.ID] = len(reg.doctors)
		reg.doctors = append(reg.doctors, d)
	}
	for _, s := range slots {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			return nil, errors.New("catalog: time slot has no id")
		}
		if _, dup := reg.slotIdx[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate time slot %q", s.ID)
		}
		reg.slotIdx[s.ID] = len(reg.slots)
		reg.slots = append(reg.slots, s)
	}
	for _, m := range medicines {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("catalog: medicine %q has no id", m.Name)
		}
		if _, dup := reg.medicineIdx[m.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate medicine id %q", m.ID)
		}
		if m.PriceCents <= 0 {
			return nil, fmt.Errorf("catalog: medicine %q has non-positive price", m.ID)
		}
		reg.medicineIdx[m.ID] = len(reg.medicines)
		reg.medicines = append(reg.medicines, m)
	}
	return reg, nil
}

// Doctors returns every doctor, available or not.
func (r *Registry) Doctors() []Doctor {
	out := make([]Doctor, len(r.doctors))
	for i, d := range r.doctors {
		d.Languages = append([]string(nil), d.Languages...)
		out[i] = d
	}
	return out
}

// TimeSlots returns every time slot in display order.
func (r *Registry) TimeSlots() []TimeSlot {
	return append([]TimeSlot(nil), r.slots...)
}

// Medicines returns every medicine.
func (r *Registry) Medicines() []Medicine {
	return append([]Medicine(nil), r.medicines...)
}

// Doctor looks up a doctor by id.
func (r *Registry) Doctor(id string) (Doctor, error) {
	i, ok := r.doctorIdx[id]
	if !ok {
		return Doctor{}, fmt.Errorf("%w: doctor %q", ErrNotFound, id)
	}
	d := r.doctors[i]
	d.Languages = append([]string(nil), d.Languages...)
	return d, nil
}

// SelectableDoctor returns the doctor only when it may be selected.
func (r *Registry) SelectableDoctor(id string) (Doctor, error) {
	d, err := r.Doctor(id)
	if err != nil {
		return Doctor{}, err
	}
	if !d.Available {
		return Doctor{}, fmt.Errorf("%w: doctor %q", ErrUnavailable, id)
	}
	return d, nil
}

// TimeSlot looks up a time slot by id.
func (r *Registry) TimeSlot(id string) (TimeSlot, error) {
	i, ok := r.slotIdx[id]
	if !ok {
		return TimeSlot{}, fmt.Errorf("%w: time slot %q", ErrNotFound, id)
	}
	return r.slots[i], nil
}

// SelectableTimeSlot returns the slot only when it may be selected.
func (r *Registry) SelectableTimeSlot(id string) (TimeSlot, error) {
	s, err := r.TimeSlot(id)
	if err != nil {
		return TimeSlot{}, err
	}
	if !s.Available {
		return TimeSlot{}, fmt.Errorf("%w: time slot %q", ErrUnavailable, id)
	}
	return s, nil
}

// Medicine looks up a medicine by id.
func (r *Registry) Medicine(id string) (Medicine, error) {
	i, ok := r.medicineIdx[id]
	if !ok {
		return Medicine{}, fmt.Errorf("%w: medicine %q", ErrNotFound, id)
	}
	return r.medicines[i], nil
}

// SelectableMedicine returns the medicine only when it is in stock.
func (r *Registry) SelectableMedicine(id string) (Medicine, error) {
	m, err := r.Medicine(id)
	if err != nil {
		return Medicine{}, err
	}
	if !m.Available {
		return Medicine{}, fmt.Errorf("%w: medicine %q", ErrUnavailable, id)
	}
	return m, nil
}
