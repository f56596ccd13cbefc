package booking

import (
	"testing"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_APIWinsLocalBackfills(t *testing.T) {
	api := []models.RawRecord{{"orderId": "A1", "total": 0.0, "status": "Pending"}}
	local := []models.RawRecord{{"orderId": "A1", "total": 1500.0, "shippingAddress": "123 Main"}}

	got := Merge(api, local)
	require.Len(t, got, 1)
	assert.Equal(t, "A1", got[0].OrderID)
	assert.True(t, got[0].Total.Valid)
	assert.Equal(t, "0", got[0].Amount().String())
	assert.Equal(t, "123 Main", got[0].ShippingAddress)
	assert.Equal(t, "Pending", got[0].Status)
}

func TestMerge_AbsentTotalIsBackfilled(t *testing.T) {
	got := Merge(
		[]models.RawRecord{{"orderId": "A1"}},
		[]models.RawRecord{{"orderId": "A1", "total": 1500.0}},
	)
	require.Len(t, got, 1)
	assert.Equal(t, "1500", got[0].Amount().String())
}

func TestMerge_CompositeFallback(t *testing.T) {
	rec := models.RawRecord{"model": "Volt", "createdAt": "2024-03-01T10:00:00Z", "total": 1200.0, "email": "A@B.C"}
	dup := models.RawRecord{"model": "volt", "createdAt": "2024-03-01T10:00:00Z", "total": "1200", "userEmail": "a@b.c", "receiptNumber": "R-9"}

	got := Merge([]models.RawRecord{rec}, []models.RawRecord{dup})
	require.Len(t, got, 1)
	assert.True(t, got[0].Synthetic)
	assert.Equal(t, "R-9", got[0].ReceiptNumber)
}

func TestMerge_NoiseStaysSingleton(t *testing.T) {
	noise := models.RawRecord{"status": "Pending"}
	got := Merge([]models.RawRecord{noise, noise}, []models.RawRecord{noise})
	require.Len(t, got, 3)
	assert.Equal(t, "BOOKING-0", got[0].OrderID)
	assert.Equal(t, "BOOKING-1", got[1].OrderID)
	assert.Equal(t, "BOOKING-2", got[2].OrderID)
}

func TestMerge_SkipsNonObjects(t *testing.T) {
	got := Merge([]models.RawRecord{nil, {"orderId": "B"}}, SingletonSource(nil))
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].OrderID)
}

func TestMerge_FirstSeenOrder(t *testing.T) {
	got := Merge(
		[]models.RawRecord{{"orderId": "C"}, {"orderId": "A"}},
		[]models.RawRecord{{"orderId": "B"}, {"orderId": "A"}},
	)
	ids := make([]string, 0, len(got))
	for _, b := range got {
		ids = append(ids, b.OrderID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)
}

func TestMerger_ResultIsACopy(t *testing.T) {
	m := NewMerger(Normalizer{})
	m.Add([]models.RawRecord{{"orderId": "A", "status": "Pending"}})
	first := m.Bookings()
	first[0].Status = "mutated"
	assert.Equal(t, "Pending", m.Bookings()[0].Status)
}

func TestSortByCreatedDesc(t *testing.T) {
	in := []models.Booking{
		{OrderID: "old", CreatedAt: "2024-01-01"},
		{OrderID: "bad", CreatedAt: "soon"},
		{OrderID: "new", CreatedAt: "2024-05-01T08:00:00Z"},
	}
	out := SortByCreatedDesc(in)
	assert.Equal(t, "new", out[0].OrderID)
	assert.Equal(t, "old", out[1].OrderID)
	assert.Equal(t, "bad", out[2].OrderID)
	assert.Equal(t, "old", in[0].OrderID)
}

func TestMerge_DuplicateWithEmptyFieldsCollapses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("a copy with only empty fields merges into the original", prop.ForAll(
		func(id, model, address string, total int) bool {
			original := models.RawRecord{
				"orderId":         id,
				"model":           model,
				"total":           float64(total),
				"shippingAddress": address,
				"status":          "Approved",
			}
			sparse := models.RawRecord{"orderId": id, "model": "", "shippingAddress": ""}

			for _, got := range [][]models.Booking{
				Merge([]models.RawRecord{original}, []models.RawRecord{sparse}),
				Merge([]models.RawRecord{sparse}, []models.RawRecord{original}),
			} {
				if len(got) != 1 {
					return false
				}
				b := got[0]
				if b.OrderID != id || b.Model != model || b.ShippingAddress != address || b.Status != "Approved" {
					return false
				}
				if !b.Total.Valid || b.Amount().IntPart() != int64(total) {
					return false
				}
			}
			return true
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 500000),
	))

	properties.TestingRun(t)
}
