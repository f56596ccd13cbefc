package booking

import (
	"strings"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// Signal is a keyword found in a booking's free-text status fields.
type Signal uint8

const (
	SignalCancel Signal = 1 << iota
	SignalReject
	SignalComplete
	SignalDeliver
	SignalApprove
)

var signalKeywords = []struct {
	keyword string
	signal  Signal
}{
	{"cancel", SignalCancel},
	{"reject", SignalReject},
	{"complete", SignalComplete},
	{"deliver", SignalDeliver},
	{"approve", SignalApprove},
}

// Has reports whether any of the given signals is set.
func (s Signal) Has(mask Signal) bool { return s&mask != 0 }

// DetectSignals folds and joins the texts and records which keywords occur.
func DetectSignals(texts ...string) Signal {
	text := foldText(strings.Join(texts, " "))
	var s Signal
	for _, kw := range signalKeywords {
		if strings.Contains(text, kw.keyword) {
			s |= kw.signal
		}
	}
	return s
}

// Rule maps a set of signals to a state. Rules are evaluated in order and the
// first match wins.
type Rule struct {
	Name  string
	Match Signal
	State models.BookingState
}

// Rules is the precedence table. Cancellation beats rejection, and both beat
// any progress signal.
var Rules = []Rule{
	{Name: "cancelled", Match: SignalCancel, State: models.StateCancelled},
	{Name: "rejected", Match: SignalReject, State: models.StateRejected},
	{Name: "completed", Match: SignalComplete | SignalDeliver, State: models.StateCompleted},
	{Name: "approved", Match: SignalApprove, State: models.StateApproved},
}

// ClassifySignals applies Rules; no match means pending.
func ClassifySignals(s Signal) models.BookingState {
	for _, r := range Rules {
		if s.Has(r.Match) {
			return r.State
		}
	}
	return models.StatePending
}

// Classify maps status, fulfillment and review-decision text to a state.
func Classify(texts ...string) models.BookingState {
	return ClassifySignals(DetectSignals(texts...))
}

func ClassifyBooking(b models.Booking) models.BookingState {
	return Classify(b.Status, b.FulfillmentStatus, b.ReviewDecision)
}

// CanCancel reports whether the customer may still cancel. Approved bookings
// stay cancellable until they are delivered.
func CanCancel(status, fulfillment string) bool {
	return cancellable(Classify(status, fulfillment))
}

// CanCancelBooking is CanCancel with the review decision taken into account.
func CanCancelBooking(b models.Booking) bool {
	return cancellable(ClassifyBooking(b))
}

func cancellable(s models.BookingState) bool {
	switch s {
	case models.StatePending, models.StateApproved:
		return true
	}
	return false
}
