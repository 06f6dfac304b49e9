package pharmacy

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/pricing"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

type Shipping struct {
	Recipient   string `json:"recipient"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
}

// QuoteLine is a priced cart line.
type QuoteLine struct {
	MedicineID     string `json:"medicine_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type Quote struct {
	Lines []QuoteLine `json:"lines"`
	pricing.CartTotals
}

// Service binds the checkout flow to an engine.
type Service struct {
	engine   *wizard.Engine[Draft]
	registry *catalog.Registry
}

func NewService(reg *catalog.Registry, opts wizard.Options[Draft]) *Service {
	if reg == nil {
		panic("pharmacy: registry required")
	}
	opts.Flow = NewFlow(reg)
	opts.Total = func(d Draft) int64 { return Totals(reg, d).TotalCents }
	opts.Success = func(s *wizard.State[Draft]) notify.Notification { return successNotice(reg, s) }
	return &Service{engine: wizard.NewEngine(opts), registry: reg}
}

func (s *Service) Engine() *wizard.Engine[Draft] { return s.engine }

// Start opens a checkout for a customer.
func (s *Service) Start(ctx context.Context, customerID string) (*wizard.State[Draft], error) {
	return s.engine.Start(ctx, customerID, Draft{CustomerID: customerID})
}

// AddItem puts a medicine in the cart, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, id, owner, medicineID string, qty int) (*wizard.State[Draft], error) {
	medicineID = strings.TrimSpace(medicineID)
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		if _, err := s.registry.SelectableMedicine(medicineID); err != nil {
			return err
		}
		i := d.find(medicineID)
		total := qty
		if i >= 0 {
			total += d.Items[i].Quantity
		}
		if err := checkQuantity(medicineID, qty, total); err != nil {
			return err
		}
		if i >= 0 {
			d.Items[i].Quantity = total
			return nil
		}
		d.Items = append(d.Items, Line{MedicineID: medicineID, Quantity: qty})
		return nil
	})
}

// SetQuantity changes a line; zero removes it.
func (s *Service) SetQuantity(ctx context.Context, id, owner, medicineID string, qty int) (*wizard.State[Draft], error) {
	if qty == 0 {
		return s.RemoveItem(ctx, id, owner, medicineID)
	}
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		i := d.find(medicineID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrItemNotInCart, medicineID)
		}
		if err := checkQuantity(medicineID, qty, qty); err != nil {
			return err
		}
		d.Items[i].Quantity = qty
		return nil
	})
}

// RemoveItem drops a line. Emptying the cart rewinds the session to step 1.
func (s *Service) RemoveItem(ctx context.Context, id, owner, medicineID string) (*wizard.State[Draft], error) {
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		i := d.find(medicineID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrItemNotInCart, medicineID)
		}
		d.Items = append(d.Items[:i], d.Items[i+1:]...)
		return nil
	})
}

func (s *Service) SetPrescription(ctx context.Context, id, owner, ref string) (*wizard.State[Draft], error) {
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		d.PrescriptionRef = strings.TrimSpace(ref)
		return nil
	})
}

func (s *Service) SetShipping(ctx context.Context, id, owner string, in Shipping) (*wizard.State[Draft], error) {
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		d.Recipient = strings.TrimSpace(in.Recipient)
		d.Phone = strings.TrimSpace(in.Phone)
		d.Email = strings.TrimSpace(in.Email)
		d.AddressLine = strings.TrimSpace(in.AddressLine)
		d.City = strings.TrimSpace(in.City)
		d.PostalCode = strings.TrimSpace(in.PostalCode)
		return nil
	})
}

func (s *Service) SetPayment(ctx context.Context, id, owner, method string) (*wizard.State[Draft], error) {
	return s.engine.Update(ctx, id, owner, func(d *Draft) error {
		m, ok := ParsePaymentMethod(method)
		if !ok {
			return wizard.FieldError("payment", "payment_method", "must be card or cash_on_delivery")
		}
		d.PaymentMethod = m
		return nil
	})
}

// Quote prices the cart line by line.
func (s *Service) Quote(ctx context.Context, id, owner string) (Quote, error) {
	st, err := s.engine.Get(ctx, id, owner)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(st.Draft), nil
}

func (s *Service) quote(d Draft) Quote {
	q := Quote{Lines: make([]QuoteLine, 0, len(d.Items)), CartTotals: Totals(s.registry, d)}
	for _, l := range d.Items {
		med, err := s.registry.Medicine(l.MedicineID)
		if err != nil {
			continue
		}
		q.Lines = append(q.Lines, QuoteLine{
			MedicineID:     med.ID,
			Name:           med.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: med.PriceCents,
			LineTotalCents: med.PriceCents * int64(l.Quantity),
		})
	}
	return q
}

func checkQuantity(medicineID string, qty, total int) error {
	if qty < 1 || total > MaxQuantity {
		return wizard.FieldError("cart", fmt.Sprintf("items[%s]", medicineID), fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity))
	}
	return nil
}

func successNotice(reg *catalog.Registry, s *wizard.State[Draft]) notify.Notification {
	ref := ""
	if s.Receipt != nil {
		ref = s.Receipt.Reference
	}
	totals := Totals(reg, s.Draft)
	n := notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   "Order placed",
		Message: fmt.Sprintf("Order %s for %s will be delivered to %s.", ref, pricing.FormatCents(totals.TotalCents), s.Draft.City),
	}
	if s.Draft.Email != "" {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("Order: %s\n", ref))
		for _, l := range s.Draft.Items {
			name := l.MedicineID
			if med, err := reg.Medicine(l.MedicineID); err == nil {
				name = med.Name
			}
			b.WriteString(fmt.Sprintf("%d x %s\n", l.Quantity, name))
		}
		b.WriteString(fmt.Sprintf("Subtotal: %s\n", pricing.FormatCents(totals.SubtotalCents)))
		b.WriteString(fmt.Sprintf("Delivery: %s\n", pricing.FormatCents(totals.DeliveryCents)))
		b.WriteString(fmt.Sprintf("Total: %s\n", pricing.FormatCents(totals.TotalCents)))
		b.WriteString(fmt.Sprintf("Ship to: %s, %s, %s %s\n", s.Draft.Recipient, s.Draft.AddressLine, s.Draft.City, s.Draft.PostalCode))
		n.Email = &notify.EmailMessage{
			To:      s.Draft.Email,
			ToName:  s.Draft.Recipient,
			Subject: "Your CareConnect order " + ref,
			Body:    b.String(),

			Category:  notify.CategoryCheckout,
			Reference: ref,
		}
	}
	return n
}
