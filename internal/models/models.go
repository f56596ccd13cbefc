package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Totals and sales go out as JSON numbers; absent totals stay null.
	decimal.MarshalJSONWithoutQuotes = true
}

// RawRecord is a booking as some source handed it to us. Field names vary
// between the API and the different local buckets.
type RawRecord map[string]any

// BookingState is the lifecycle bucket derived from the free-text status fields.
type BookingState string

const (
	StatePending   BookingState = "pending"
	StateApproved  BookingState = "approved"
	StateRejected  BookingState = "rejected"
	StateCancelled BookingState = "cancelled"
	StateCompleted BookingState = "completed"
)

// Successful reports whether the state counts as a successful sale.
// Approved and completed collapse into one bucket here.
func (s BookingState) Successful() bool {
	return s == StateApproved || s == StateCompleted
}

// Closed reports whether the booking has left the active pipeline for good
// without succeeding.
func (s BookingState) Closed() bool {
	return s == StateRejected || s == StateCancelled
}

type Booking struct {
	OrderID   string `json:"orderId"`
	Synthetic bool   `json:"-"` // OrderID was generated, not read from the source
	CreatedAt string `json:"createdAt"`
	UserEmail string `json:"userEmail,omitempty"`

	Model   string              `json:"model"`
	Service string              `json:"service"` // "Delivery", "Pick Up" or free text
	Payment string              `json:"payment"`
	Total   decimal.NullDecimal `json:"total"`

	ScheduleDate  string `json:"scheduleDate,omitempty"`
	ScheduleTime  string `json:"scheduleTime,omitempty"`
	ScheduledAt   string `json:"scheduledAt,omitempty"`
	ScheduleLabel string `json:"scheduleLabel,omitempty"`

	Status            string `json:"status"`
	FulfillmentStatus string `json:"fulfillmentStatus"`
	ReviewDecision    string `json:"reviewDecision"`

	ShippingAddress  string `json:"shippingAddress"`
	ReceiptNumber    string `json:"receiptNumber"`
	TrackingETA      string `json:"trackingEta"`
	TrackingLocation string `json:"trackingLocation"`
}

// Amount returns the booking total, zero when the source never stated one.
func (b Booking) Amount() decimal.Decimal {
	if !b.Total.Valid {
		return decimal.Zero
	}
	return b.Total.Decimal
}

// ScopeKind selects which bookings a repository returns.
type ScopeKind string

const (
	ScopeUser    ScopeKind = "user"
	ScopePending ScopeKind = "pending"
	ScopeAll     ScopeKind = "all"
)

type Scope struct {
	Kind      ScopeKind
	UserEmail string
}

type CalendarDay struct {
	DateKey          string   `json:"dateKey"` // YYYY-MM-DD
	Total            int      `json:"total"`
	InstallmentCount int      `json:"installmentCount"`
	FullPaymentCount int      `json:"fullPaymentCount"`
	InMonth          bool     `json:"inMonth"`
	AtCapacity       bool     `json:"atCapacity"`
	OrderIDs         []string `json:"orderIds,omitempty"`
}

type MonthBucket struct {
	Key       string          `json:"key"` // YYYY-MM
	Label     string          `json:"label"`
	Sales     decimal.Decimal `json:"sales"`
	Bookings  int             `json:"bookings"`
	Approved  int             `json:"approved"`
	Rejected  int             `json:"rejected"`
	Pending   int             `json:"pending"`
	Cancelled int             `json:"cancelled"`
}

type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
