package booking

import (
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/pricing"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

// Summary is the confirmed appointment as shown to the patient.
type Summary struct {
	Reference   string
	DoctorName  string
	Specialty   string
	Hospital    string
	Date        string
	Time        string
	Modality    pricing.Modality
	PatientName string
	Phone       string
	Email       string
	Reason      string
	TotalCents  int64
}

func summarize(reg *catalog.Registry, s *wizard.State[Draft]) Summary {
	d := s.Draft
	sum := Summary{
		DoctorName:  d.DoctorID,
		Date:        d.Date,
		Time:        d.Time,
		Modality:    d.Modality,
		PatientName: d.PatientName,
		Phone:       d.PatientPhone,
		Email:       d.PatientEmail,
		Reason:      d.Reason,
		TotalCents:  Total(reg, d),
	}
	if doc, err := reg.Doctor(d.DoctorID); err == nil {
		sum.DoctorName = doc.Name
		sum.Specialty = doc.Specialty
		sum.Hospital = doc.Hospital
	}
	if s.Receipt != nil {
		sum.Reference = s.Receipt.Reference
		if s.Receipt.TotalCents != 0 {
			sum.TotalCents = s.Receipt.TotalCents
		}
	}
	return sum
}

// FormatSummary renders a plain text confirmation.
func FormatSummary(sum Summary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Reference: %s\n", valueOrNA(sum.Reference)))
	b.WriteString(fmt.Sprintf("Doctor: %s\n", valueOrNA(sum.DoctorName)))
	if sum.Specialty != "" {
		b.WriteString(fmt.Sprintf("Specialty: %s\n", sum.Specialty))
	}
	if sum.Hospital != "" && sum.Modality == pricing.ModalityClinic {
		b.WriteString(fmt.Sprintf("Location: %s\n", sum.Hospital))
	}
	b.WriteString(fmt.Sprintf("When: %s at %s\n", valueOrNA(sum.Date), valueOrNA(sum.Time)))
	b.WriteString(fmt.Sprintf("Consultation: %s\n", valueOrNA(string(sum.Modality))))
	b.WriteString(fmt.Sprintf("Patient: %s\n", valueOrNA(sum.PatientName)))
	b.WriteString(fmt.Sprintf("Phone: %s\n", valueOrNA(sum.Phone)))
	if sum.Reason != "" {
		b.WriteString(fmt.Sprintf("Reason: %s\n", sum.Reason))
	}
	b.WriteString(fmt.Sprintf("Total: %s\n", pricing.FormatCents(sum.TotalCents)))
	return b.String()
}

// FormatSummaryHTML renders the confirmation for email.
func FormatSummaryHTML(sum Summary) string {
	row := func(label, value string) string {
		return fmt.Sprintf(`<tr><td style="padding:6px 12px;font-weight:bold;">%s</td><td style="padding:6px 12px;">%s</td></tr>`, label, html.EscapeString(valueOrNA(value)))
	}
	var rows strings.Builder
	rows.WriteString(row("Reference", sum.Reference))
	rows.WriteString(row("Doctor", sum.DoctorName))
	rows.WriteString(row("When", sum.Date+" "+sum.Time))
	rows.WriteString(row("Consultation", string(sum.Modality)))
	if sum.Reason != "" {
		rows.WriteString(row("Reason", sum.Reason))
	}
	rows.WriteString(row("Total", pricing.FormatCents(sum.TotalCents)))

	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:600px;">
<h2 style="color:#333;">Appointment confirmed</h2>
<p>Hi %s, your appointment is booked.</p>
<table style="border-collapse:collapse;width:100%%;">
%s</table>
</div>`, html.EscapeString(valueOrNA(sum.PatientName)), rows.String())
}

func successNotice(reg *catalog.Registry, s *wizard.State[Draft]) notify.Notification {
	sum := summarize(reg, s)
	n := notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   "Appointment booked",
		Message: fmt.Sprintf("Your appointment with %s on %s at %s is confirmed. Reference %s.", sum.DoctorName, sum.Date, sum.Time, sum.Reference),
	}
	if sum.Email != "" {
		n.Email = &notify.EmailMessage{
			To:      sum.Email,
			ToName:  sum.PatientName,
			Subject: "Your CareConnect appointment " + sum.Reference,
			Body:    FormatSummary(sum),
			HTML:    FormatSummaryHTML(sum),

			Category:  notify.CategoryBooking,
			Reference: sum.Reference,
		}
	}
	return n
}

func valueOrNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}
