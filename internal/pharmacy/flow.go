// Package pharmacy implements the medicine checkout wizard: build a cart,
// enter shipping details and choose a payment method.
package pharmacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/pricing"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

const (
	FlowName    = "pharmacy"
	MaxQuantity = 10
)

// ErrItemNotInCart is returned when changing a line the cart does not hold.
var ErrItemNotInCart = errors.New("pharmacy: item not in cart")

// PaymentMethod is how the order will be paid on delivery or at checkout.
type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentCard, PaymentCashOnDelivery:
		return m, true
	}
	return "", false
}

type Line struct {
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity"`
}

// Draft is the in-progress order.
type Draft struct {
	CustomerID      string        `json:"customer_id,omitempty"`
	Items           []Line        `json:"items,omitempty"`
	PrescriptionRef string        `json:"prescription_ref,omitempty"`
	Recipient       string        `json:"recipient,omitempty"`
	Phone           string        `json:"phone,omitempty"`
	Email           string        `json:"email,omitempty"`
	AddressLine     string        `json:"address_line,omitempty"`
	City            string        `json:"city,omitempty"`
	PostalCode      string        `json:"postal_code,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method,omitempty"`
}

func (d Draft) find(medicineID string) int {
	for i, l := range d.Items {
		if l.MedicineID == medicineID {
			return i
		}
	}
	return -1
}

// NewFlow defines the checkout steps against a registry.
func NewFlow(reg *catalog.Registry) *wizard.Flow[Draft] {
	return wizard.NewFlow(FlowName,
		wizard.Step[Draft]{Key: "cart", Title: "Your cart", Validate: func(d Draft) error {
			return validateCart(reg, d)
		}},
		wizard.Step[Draft]{Key: "shipping", Title: "Delivery address", Validate: func(d Draft) error {
			c := wizard.Check("shipping").
				Require("recipient", d.Recipient).
				Require("phone", d.Phone).
				Phone("phone", d.Phone).
				Email("email", d.Email).
				Require("address_line", d.AddressLine).
				Require("city", d.City).
				Require("postal_code", d.PostalCode)
			if !c.Has("postal_code") && !validPostalCode(d.PostalCode) {
				c.Fail("postal_code", "must be a valid postal code")
			}
			return c.Err()
		}},
		wizard.Step[Draft]{Key: "payment", Title: "Payment", Validate: func(d Draft) error {
			c := wizard.Check("payment").Require("payment_method", string(d.PaymentMethod))
			if _, ok := ParsePaymentMethod(string(d.PaymentMethod)); !c.Has("payment_method") && !ok {
				c.Fail("payment_method", "must be card or cash_on_delivery")
			}
			return c.Err()
		}},
	)
}

func validateCart(reg *catalog.Registry, d Draft) error {
	c := wizard.Check("cart")
	if len(d.Items) == 0 {
		c.Fail("items", "add at least one medicine")
		return c.Err()
	}
	needsPrescription := false
	for _, l := range d.Items {
		field := fmt.Sprintf("items[%s]", l.MedicineID)
		med, err := reg.SelectableMedicine(l.MedicineID)
		if err != nil {
			if errors.Is(err, catalog.ErrUnavailable) {
				c.Fail(field, "is out of stock")
			} else {
				c.Fail(field, "is not a known medicine")
			}
			continue
		}
		if l.Quantity < 1 || l.Quantity > MaxQuantity {
			c.Fail(field, fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity))
		}
		needsPrescription = needsPrescription || med.RequiresPrescription
	}
	if needsPrescription {
		c.Require("prescription_ref", d.PrescriptionRef)
	}
	return c.Err()
}

func validPostalCode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 3 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == ' ', r == '-':
		default:
			return false
		}
	}
	return true
}

// Totals prices a cart. Lines whose medicine is unknown are skipped.
func Totals(reg *catalog.Registry, d Draft) pricing.CartTotals {
	lines := make([]pricing.CartLine, 0, len(d.Items))
	for _, l := range d.Items {
		med, err := reg.Medicine(l.MedicineID)
		if err != nil {
			continue
		}
		lines = append(lines, pricing.CartLine{UnitPriceCents: med.PriceCents, Quantity: l.Quantity})
	}
	return pricing.Cart(lines)
}
