package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
)

func TestPhoneIsVideoMinusDiscountForEveryDoctor(t *testing.T) {
	reg, err := catalog.Default()
	require.NoError(t, err)

	for _, d := range reg.Doctors() {
		video := ConsultationPrice(d, ModalityVideo)
		phone := ConsultationPrice(d, ModalityPhone)
		assert.Equal(t, video-2000, phone, "doctor %s", d.ID)
	}
}

func TestConsultationPriceIsDeterministic(t *testing.T) {
	reg, err := catalog.Default()
	require.NoError(t, err)

	for _, d := range reg.Doctors() {
		for _, m := range Modalities() {
			first := ConsultationPrice(d, m)
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, ConsultationPrice(d, m))
			}
		}
	}
}

func TestConsultationScenarios(t *testing.T) {
	doctor := catalog.Doctor{ID: "dr-x", ConsultationFeeCents: 15000}

	tests := []struct {
		modality Modality
		want     int64
	}{
		{ModalityVideo, 15000},
		{ModalityPhone, 13000},
		{ModalityClinic, 15000},
	}
	for _, tt := range tests {
		t.Run(string(tt.modality), func(t *testing.T) {
			q := ConsultationQuote(doctor, tt.modality)
			assert.Equal(t, tt.want, q.TotalCents)
			assert.Equal(t, int64(15000), q.BaseCents)
			assert.Equal(t, q.BaseCents+q.AdjustmentCents, q.TotalCents)
		})
	}
}

func TestParseModality(t *testing.T) {
	m, err := ParseModality(" Phone ")
	require.NoError(t, err)
	assert.Equal(t, ModalityPhone, m)

	_, err = ParseModality("carrier pigeon")
	assert.True(t, errors.Is(err, ErrUnknownModality))
}

func TestCheckRegistry(t *testing.T) {
	reg, err := catalog.Default()
	require.NoError(t, err)
	require.NoError(t, CheckRegistry(reg))

	cheap, err := catalog.New([]catalog.Doctor{{ID: "cheap", ConsultationFeeCents: 1500}}, nil, nil)
	require.NoError(t, err)
	assert.Error(t, CheckRegistry(cheap))
}

func TestCart(t *testing.T) {
	tests := []struct {
		name  string
		lines []CartLine
		want  CartTotals
	}{
		{"empty", nil, CartTotals{}},
		{
			name:  "below threshold pays delivery",
			lines: []CartLine{{UnitPriceCents: 599, Quantity: 2}},
			want:  CartTotals{SubtotalCents: 1198, DeliveryCents: 500, TotalCents: 1698},
		},
		{
			name:  "at threshold ships free",
			lines: []CartLine{{UnitPriceCents: 2500, Quantity: 2}},
			want:  CartTotals{SubtotalCents: 5000, DeliveryCents: 0, TotalCents: 5000},
		},
		{
			name:  "ignores non-positive quantities",
			lines: []CartLine{{UnitPriceCents: 100, Quantity: 0}, {UnitPriceCents: 100, Quantity: 1}},
			want:  CartTotals{SubtotalCents: 100, DeliveryCents: 500, TotalCents: 600},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cart(tt.lines))
		})
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$150.00", FormatCents(15000))
	assert.Equal(t, "$0.05", FormatCents(5))
	assert.Equal(t, "-$20.00", FormatCents(-2000))
}
