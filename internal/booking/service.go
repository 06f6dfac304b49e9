package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/pricing"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Schedule is the second step's selection.
type Schedule struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Modality string `json:"modality"`
}

// Patient is the third step's input.
type Patient struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

// Service binds the booking flow to an engine.
type Service struct {
	engine   *wizard.Engine[Draft]
	registry *catalog.Registry
	logger   *logging.Logger
}

// NewService builds the booking engine. opts supplies the store, submitter,
// notifier and metrics; the flow, pricing and notices are set here.
func NewService(reg *catalog.Registry, opts wizard.Options[Draft]) *Service {
	if reg == nil {
		panic("booking: registry required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	opts.Flow = NewFlow(reg)
	opts.Total = func(d Draft) int64 { return Total(reg, d) }
	opts.Success = func(s *wizard.State[Draft]) notify.Notification { return successNotice(reg, s) }
	return &Service{
		engine:   wizard.NewEngine(opts),
		registry: reg,
		logger:   opts.Logger,
	}
}

// Engine exposes the generic session operations.
func (s *Service) Engine() *wizard.Engine[Draft] { return s.engine }

// Start opens a booking for a patient.
func (s *Service) Start(ctx context.Context, patientID string) (*wizard.State[Draft], error) {
	return s.engine.Start(ctx, patientID, NewDraft(patientID))
}

// SelectDoctor sets the doctor. Unavailable doctors are refused and leave the
// selection unchanged.
func (s *Service) SelectDoctor(ctx context.Context, id, owner, doctorID string) (*wizard.State[Draft], error) {
	doctorID = strings.TrimSpace(doctorID)
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		if _, err := s.registry.SelectableDoctor(doctorID); err != nil {
			return err
		}
		d.DoctorID = doctorID
		return nil
	})
}

// SetSchedule sets date, time slot and modality together. Blank fields clear
// the selection; malformed or unavailable values are refused.
func (s *Service) SetSchedule(ctx context.Context, id, owner string, in Schedule) (*wizard.State[Draft], error) {
	date := strings.TrimSpace(in.Date)
	slot := strings.TrimSpace(in.Time)
	modality := strings.TrimSpace(in.Modality)

	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		c := wizard.Check("schedule")
		if date != "" {
			if _, err := time.Parse(DateLayout, date); err != nil {
				c.Fail("date", "must be a date in YYYY-MM-DD format")
			}
		}
		var m pricing.Modality
		if modality != "" {
			parsed, err := pricing.ParseModality(modality)
			if err != nil {
				c.Fail("modality", "must be one of video, phone, clinic")
			}
			m = parsed
		}
		if err := c.Err(); err != nil {
			return err
		}
		if slot != "" {
			if _, err := s.registry.SelectableTimeSlot(slot); err != nil {
				return err
			}
		}
		d.Date, d.Time, d.Modality = date, slot, m
		return nil
	})
}

// SetPatient stores the patient details. Validation happens on advance.
func (s *Service) SetPatient(ctx context.Context, id, owner string, in Patient) (*wizard.State[Draft], error) {
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		d.PatientName = strings.TrimSpace(in.Name)
		d.PatientEmail = strings.TrimSpace(in.Email)
		d.PatientPhone = strings.TrimSpace(in.Phone)
		d.Reason = strings.TrimSpace(in.Reason)
		return nil
	})
}

// Quote prices the current selection.
func (s *Service) Quote(ctx context.Context, id, owner string) (pricing.Quote, error) {
	st, err := s.engine.Get(ctx, id, owner)
	if err != nil {
		return pricing.Quote{}, err
	}
	if st.Draft.DoctorID == "" {
		return pricing.Quote{}, wizard.FieldError("doctor", "doctor_id", "is required")
	}
	doc, err := s.registry.Doctor(st.Draft.DoctorID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("booking: quote: %w", err)
	}
	m, err := pricing.ParseModality(string(st.Draft.Modality))
	if err != nil {
		m = pricing.ModalityVideo
	}
	return pricing.ConsultationQuote(doc, m), nil
}
