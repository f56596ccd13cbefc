package calendar

import (
	"testing"
	"time"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march2024 = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

func cellByKey(t *testing.T, cal Calendar, key string) models.CalendarDay {
	t.Helper()
	for _, c := range cal.Grid {
		if c.DateKey == key {
			return c
		}
	}
	t.Fatalf("no cell %s in grid", key)
	return models.CalendarDay{}
}

func TestAggregate_EmptyInput(t *testing.T) {
	cal := Aggregate(nil, march2024)
	require.Len(t, cal.Grid, GridCells)
	for _, c := range cal.Grid {
		assert.Equal(t, 0, c.Total)
		assert.False(t, c.AtCapacity)
	}
	assert.Equal(t, 0, cal.Summary.Total)
}

func TestAggregate_GridLayout(t *testing.T) {
	cal := Aggregate(nil, march2024)
	// March 1st 2024 was a Friday, so the grid opens on Monday Feb 26th.
	assert.Equal(t, "2024-02-26", cal.Grid[0].DateKey)
	assert.False(t, cal.Grid[0].InMonth)
	assert.Equal(t, "2024-03-01", cal.Grid[4].DateKey)
	assert.True(t, cal.Grid[4].InMonth)
	assert.Equal(t, "2024-04-07", cal.Grid[GridCells-1].DateKey)
	assert.Equal(t, "2024-03", cal.Month)
}

func TestAggregate_InstallmentScenario(t *testing.T) {
	bookings := []models.Booking{
		{OrderID: "A", ScheduleDate: "2024-03-15", Payment: "Installment", Status: "Approved"},
	}
	cal := Aggregate(bookings, march2024)

	day := cellByKey(t, cal, "2024-03-15")
	assert.Equal(t, 1, day.Total)
	assert.Equal(t, 1, day.InstallmentCount)
	assert.Equal(t, 0, day.FullPaymentCount)
	assert.Equal(t, []string{"A"}, day.OrderIDs)
	assert.Equal(t, 1, cal.Summary.Installment)
	assert.Equal(t, 0, cal.Summary.FullPayment)
}

func TestAggregate_FreeTextLabelStillPlaced(t *testing.T) {
	bookings := []models.Booking{{
		OrderID:       "L1",
		ScheduleDate:  "2024-03-15",
		ScheduleTime:  "10:00 AM",
		ScheduleLabel: "Mar 15 - morning slot",
		Status:        "Approved",
	}}
	cal := Aggregate(bookings, march2024)

	assert.Equal(t, 1, cellByKey(t, cal, "2024-03-15").Total)
	assert.Equal(t, 1, cal.Summary.Total)
	require.Len(t, Rollup(bookings), 1)
	assert.Equal(t, "2024-03", Rollup(bookings)[0].Month)
}

func TestAggregate_SkipsClosedAndCountsCapacity(t *testing.T) {
	bookings := []models.Booking{
		{OrderID: "1", ScheduleDate: "2024-03-20", Payment: "Full Payment"},
		{OrderID: "2", ScheduleDate: "2024-03-20", Payment: "Cash", Status: "Approved"},
		{OrderID: "3", ScheduleDate: "2024-03-20", Service: "Installment plan", FulfillmentStatus: "Delivered"},
		{OrderID: "4", ScheduleDate: "2024-03-20", Status: "Rejected"},
		{OrderID: "5", ScheduleDate: "2024-03-20", Status: "Cancelled"},
	}
	cal := Aggregate(bookings, march2024)

	day := cellByKey(t, cal, "2024-03-20")
	assert.Equal(t, 3, day.Total)
	assert.Equal(t, 1, day.InstallmentCount)
	assert.Equal(t, 2, day.FullPaymentCount)
	assert.True(t, day.AtCapacity)
	assert.Equal(t, 1, cal.Summary.FullDays)

	loose := Aggregate(bookings, march2024, WithCapacity(5))
	assert.False(t, cellByKey(t, loose, "2024-03-20").AtCapacity)
	assert.Equal(t, 5, loose.Capacity)
}

func TestAggregate_AdjacentDaysRenderedButNotSummed(t *testing.T) {
	bookings := []models.Booking{
		{OrderID: "feb", ScheduleDate: "2024-02-27"},
		{OrderID: "mar", ScheduleDate: "2024-03-02"},
		{OrderID: "far", ScheduleDate: "2024-06-01"},
		{OrderID: "unknown", ScheduleDate: "someday"},
	}
	cal := Aggregate(bookings, march2024)
	assert.Equal(t, 1, cellByKey(t, cal, "2024-02-27").Total)
	assert.Equal(t, 1, cal.Summary.Total)
}

func TestAggregate_SummaryMatchesInMonthCells(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("summary total equals the sum of in-month cells", prop.ForAll(
		func(offsets []int, monthShift int) bool {
			cursor := march2024.AddDate(0, monthShift, 0)
			bookings := make([]models.Booking, 0, len(offsets))
			for i, off := range offsets {
				day := cursor.AddDate(0, 0, off)
				payment := "Full"
				if i%2 == 0 {
					payment = "Installment"
				}
				bookings = append(bookings, models.Booking{ScheduleDate: day.Format("2006-01-02"), Payment: payment})
			}

			cal := Aggregate(bookings, cursor)
			if len(cal.Grid) != GridCells {
				return false
			}
			sum := 0
			for _, c := range cal.Grid {
				if c.InMonth {
					sum += c.Total
				}
				if c.InstallmentCount+c.FullPaymentCount != c.Total {
					return false
				}
			}
			return sum == cal.Summary.Total && cal.Summary.Installment+cal.Summary.FullPayment == sum
		},
		gen.SliceOf(gen.IntRange(-40, 40)),
		gen.IntRange(-24, 24),
	))

	properties.TestingRun(t)
}

func TestRollup(t *testing.T) {
	got := Rollup([]models.Booking{
		{ScheduleDate: "2024-04-02", Payment: "Installment"},
		{ScheduleDate: "2024-03-15"},
		{ScheduleDate: "2024-03-16", Status: "Rejected"},
		{ScheduledAt: "2024-03-20T10:00:00Z"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, MonthSummary{Month: "2024-03", Total: 2, FullPayment: 2}, got[0])
	assert.Equal(t, MonthSummary{Month: "2024-04", Total: 1, Installment: 1}, got[1])
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, time.March, m.Month())

	_, err = ParseMonth("March")
	assert.Error(t, err)
}
