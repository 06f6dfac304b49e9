// Package booking implements the three step appointment booking wizard:
// choose a doctor, pick a schedule and modality, then enter patient details.
package booking

import (
	"errors"
	"time"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/pricing"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

// FlowName keys booking sessions and idempotency keys.
const FlowName = "booking"

// DateLayout is the accepted appointment date format.
const DateLayout = "2006-01-02"

// Draft is the in-progress booking.
type Draft struct {
	DoctorID     string           `json:"doctor_id,omitempty"`
	Date         string           `json:"date,omitempty"`
	Time         string           `json:"time,omitempty"`
	Modality     pricing.Modality `json:"modality,omitempty"`
	PatientID    string           `json:"patient_id,omitempty"`
	PatientName  string           `json:"patient_name,omitempty"`
	PatientEmail string           `json:"patient_email,omitempty"`
	PatientPhone string           `json:"patient_phone,omitempty"`
	Reason       string           `json:"reason,omitempty"`
}

// NewDraft returns an empty booking defaulting to a video consultation.
func NewDraft(patientID string) Draft {
	return Draft{PatientID: patientID, Modality: pricing.ModalityVideo}
}

// NewFlow defines the booking steps against a registry.
func NewFlow(reg *catalog.Registry) *wizard.Flow[Draft] {
	return wizard.NewFlow(FlowName,
		wizard.Step[Draft]{Key: "doctor", Title: "Choose a doctor", Validate: func(d Draft) error {
			c := wizard.Check("doctor").Require("doctor_id", d.DoctorID)
			if !c.Has("doctor_id") {
				if _, err := reg.SelectableDoctor(d.DoctorID); err != nil {
					c.Fail("doctor_id", entityMessage(err))
				}
			}
			return c.Err()
		}},
		wizard.Step[Draft]{Key: "schedule", Title: "Pick a time", Validate: func(d Draft) error {
			return checkSchedule(reg, d).Err()
		}},
		wizard.Step[Draft]{Key: "patient", Title: "Patient details", Validate: func(d Draft) error {
			return wizard.Check("patient").
				Require("patient_name", d.PatientName).
				Require("patient_phone", d.PatientPhone).
				Phone("patient_phone", d.PatientPhone).
				Email("patient_email", d.PatientEmail).
				Err()
		}},
	)
}

func checkSchedule(reg *catalog.Registry, d Draft) *wizard.Checker {
	c := wizard.Check("schedule").
		Require("date", d.Date).
		Require("time", d.Time).
		Require("modality", string(d.Modality))
	if !c.Has("date") {
		if _, err := time.Parse(DateLayout, d.Date); err != nil {
			c.Fail("date", "must be a date in YYYY-MM-DD format")
		}
	}
	if !c.Has("time") {
		if _, err := reg.SelectableTimeSlot(d.Time); err != nil {
			c.Fail("time", entityMessage(err))
		}
	}
	if !c.Has("modality") {
		if _, err := pricing.ParseModality(string(d.Modality)); err != nil {
			c.Fail("modality", "must be one of video, phone, clinic")
		}
	}
	return c
}

func entityMessage(err error) string {
	if errors.Is(err, catalog.ErrUnavailable) {
		return "is not available"
	}
	return "is not a known option"
}

// Total prices a draft; drafts without a known doctor cost nothing yet.
func Total(reg *catalog.Registry, d Draft) int64 {
	doc, err := reg.Doctor(d.DoctorID)
	if err != nil {
		return 0
	}
	m, err := pricing.ParseModality(string(d.Modality))
	if err != nil {
		m = pricing.ModalityVideo
	}
	return pricing.ConsultationPrice(doc, m)
}
