package booking

import (
	"encoding/json"
	"testing"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_NotAnObject(t *testing.T) {
	_, ok := Normalize(nil, 0)
	assert.False(t, ok)
}

func TestNormalize_Synonyms(t *testing.T) {
	raw := models.RawRecord{
		"id":             "EC-1001",
		"email":          "  Rider@Example.COM ",
		"bikeModel":      "Volt X",
		"amount":         "₱45,500.00",
		"created_at":     "2024-03-01T10:00:00Z",
		"deliveryMethod": "Delivery",
		"paymentMethod":  "Installment",
		"address":        "123 Main",
		"decision":       "approved",
	}

	b, ok := Normalize(raw, 7)
	require.True(t, ok)
	assert.Equal(t, "EC-1001", b.OrderID)
	assert.False(t, b.Synthetic)
	assert.Equal(t, "rider@example.com", b.UserEmail)
	assert.Equal(t, "Volt X", b.Model)
	assert.True(t, b.Total.Valid)
	assert.True(t, decimal.RequireFromString("45500").Equal(b.Amount()))
	assert.Equal(t, "Delivery", b.Service)
	assert.Equal(t, "Installment", b.Payment)
	assert.Equal(t, "123 Main", b.ShippingAddress)
	assert.Equal(t, "approved", b.ReviewDecision)
}

func TestNormalize_Defaults(t *testing.T) {
	b, ok := Normalize(models.RawRecord{"model": "Volt"}, 3)
	require.True(t, ok)
	assert.Equal(t, "BOOKING-3", b.OrderID)
	assert.True(t, b.Synthetic)
	assert.False(t, b.Total.Valid)
	assert.True(t, b.Amount().IsZero())
	assert.Empty(t, b.ShippingAddress)
	assert.Empty(t, b.TrackingETA)
}

func TestNormalize_CheckoutPrefix(t *testing.T) {
	b, ok := Normalizer{Prefix: CheckoutPrefix}.Normalize(models.RawRecord{}, 12)
	require.True(t, ok)
	assert.Equal(t, "#EC-12", b.OrderID)
}

func TestNormalize_Totals(t *testing.T) {
	tests := []struct {
		name  string
		value any
		valid bool
		want  string
	}{
		{"float", 1500.5, true, "1500.5"},
		{"explicit zero", 0.0, true, "0"},
		{"json number", json.Number("2500"), true, "2500"},
		{"currency string", "$1,200.75", true, "1200.75"},
		{"negative", -10.0, false, "0"},
		{"garbage", "n/a", false, "0"},
		{"bool", true, false, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := Normalize(models.RawRecord{"orderId": "A", "total": tt.value}, 0)
			require.True(t, ok)
			assert.Equal(t, tt.valid, b.Total.Valid)
			assert.Equal(t, tt.want, b.Amount().String())
		})
	}
}

func TestNormalize_NumericIDs(t *testing.T) {
	b, ok := Normalize(models.RawRecord{"id": json.Number("42")}, 0)
	require.True(t, ok)
	assert.Equal(t, "42", b.OrderID)

	b, ok = Normalize(models.RawRecord{"id": float64(17)}, 0)
	require.True(t, ok)
	assert.Equal(t, "17", b.OrderID)
}

func TestNormalize_RoundTripsStoredBooking(t *testing.T) {
	in := models.Booking{
		OrderID:         "A1",
		CreatedAt:       "2024-03-01T10:00:00Z",
		UserEmail:       "a@b.c",
		Model:           "Volt",
		Total:           decimal.NewNullDecimal(decimal.NewFromInt(1500)),
		Status:          "Pending",
		ShippingAddress: "123 Main",
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	recs, err := DecodeRecords(data)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	out, ok := Normalize(recs[0], 0)
	require.True(t, ok)
	assert.Equal(t, in.OrderID, out.OrderID)
	assert.Equal(t, in.UserEmail, out.UserEmail)
	assert.True(t, in.Amount().Equal(out.Amount()))
	assert.Equal(t, in.ShippingAddress, out.ShippingAddress)
}
