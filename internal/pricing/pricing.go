// Package pricing computes consultation and cart totals. Every function is
// pure: identical inputs always yield identical outputs.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
)

// Modality is the consultation delivery channel.
type Modality string

const (
	ModalityVideo  Modality = "video"
	ModalityPhone  Modality = "phone"
	ModalityClinic Modality = "clinic"
)

const (
	// PhoneDiscountCents is taken off the base fee for phone consultations.
	PhoneDiscountCents int64 = 2000

	// DeliveryFeeCents is charged on pharmacy orders below FreeDeliveryThresholdCents.
	DeliveryFeeCents           int64 = 500
	FreeDeliveryThresholdCents int64 = 5000
)

// ErrUnknownModality is returned by ParseModality for unsupported channels.
var ErrUnknownModality = errors.New("pricing: unknown modality")

var modalityDeltas = map[Modality]int64{
	ModalityVideo:  0,
	ModalityPhone:  -PhoneDiscountCents,
	ModalityClinic: 0,
}

// Modalities lists the supported channels in display order.
func Modalities() []Modality {
	return []Modality{ModalityVideo, ModalityPhone, ModalityClinic}
}

// ParseModality normalizes user input into a Modality.
func ParseModality(s string) (Modality, error) {
	m := Modality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := modalityDeltas[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModality, s)
	}
	return m, nil
}

// Delta returns the fixed adjustment for a modality. Unknown modalities
// carry no adjustment.
func Delta(m Modality) int64 {
	return modalityDeltas[m]
}

// Quote is the breakdown of a consultation price.
type Quote struct {
	BaseCents       int64    `json:"base_cents"`
	AdjustmentCents int64    `json:"adjustment_cents"`
	TotalCents      int64    `json:"total_cents"`
	Modality        Modality `json:"modality,omitempty"`
}

// ConsultationQuote prices a consultation with the given doctor and modality.
func ConsultationQuote(d catalog.Doctor, m Modality) Quote {
	delta := Delta(m)
	return Quote{
		BaseCents:       d.ConsultationFeeCents,
		AdjustmentCents: delta,
		TotalCents:      d.ConsultationFeeCents + delta,
		Modality:        m,
	}
}

// ConsultationPrice returns the total for a doctor and modality.
func ConsultationPrice(d catalog.Doctor, m Modality) int64 {
	return ConsultationQuote(d, m).TotalCents
}

// CheckRegistry ensures every doctor keeps a positive price under every modality.
func CheckRegistry(reg *catalog.Registry) error {
	for _, d := range reg.Doctors() {
		for _, m := range Modalities() {
			if ConsultationPrice(d, m) <= 0 {
				return fmt.Errorf("pricing: doctor %q has non-positive %s price", d.ID, m)
			}
		}
	}
	return nil
}

// CartLine is a priced pharmacy line.
type CartLine struct {
	UnitPriceCents int64
	Quantity       int
}

// CartTotals is the breakdown of a pharmacy order.
type CartTotals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DeliveryCents int64 `json:"delivery_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// Cart totals the given lines. An empty cart costs nothing.
func Cart(lines []CartLine) CartTotals {
	var subtotal int64
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal += l.UnitPriceCents * int64(l.Quantity)
	}
	if subtotal == 0 {
		return CartTotals{}
	}
	delivery := DeliveryFeeCents
	if subtotal >= FreeDeliveryThresholdCents {
		delivery = 0
	}
	return CartTotals{
		SubtotalCents: subtotal,
		DeliveryCents: delivery,
		TotalCents:    subtotal + delivery,
	}
}

// FormatCents renders an amount as a dollar string, e.g. 15000 -> "$150.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
