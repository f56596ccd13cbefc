package booking

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// PlaceholderPrefix is used for records that reach reconciliation without an id.
	PlaceholderPrefix = "BOOKING-"
	// CheckoutPrefix matches the ids the checkout flow hands out locally.
	CheckoutPrefix = "#EC-"
)

// Field synonyms observed across the API and the local buckets, in lookup order.
var (
	orderIDKeys        = []string{"orderId", "orderID", "order_id", "id", "bookingId", "booking_id", "reference"}
	emailKeys          = []string{"userEmail", "email", "user_email", "customerEmail", "customer_email"}
	modelKeys          = []string{"model", "bikeModel", "productName", "itemTitle", "item_title", "product"}
	serviceKeys        = []string{"service", "deliveryMethod", "delivery_method", "serviceType"}
	paymentKeys        = []string{"payment", "paymentMethod", "payment_method", "paymentPlan"}
	totalKeys          = []string{"total", "amount", "price", "totalAmount", "total_amount"}
	createdAtKeys      = []string{"createdAt", "created_at", "date", "timestamp", "orderDate"}
	scheduleDateKeys   = []string{"scheduleDate", "schedule_date", "pickupDate", "deliveryDate"}
	scheduleTimeKeys   = []string{"scheduleTime", "schedule_time", "pickupTime", "deliveryTime"}
	scheduledAtKeys    = []string{"scheduledAt", "scheduled_at"}
	scheduleLabelKeys  = []string{"scheduleLabel", "schedule_label", "schedule"}
	statusKeys         = []string{"status", "bookingStatus", "orderStatus"}
	fulfillmentKeys    = []string{"fulfillmentStatus", "fulfillment_status", "deliveryStatus", "fulfillment"}
	reviewDecisionKeys = []string{"reviewDecision", "review_decision", "decision", "adminDecision"}
	addressKeys        = []string{"shippingAddress", "shipping_address", "address", "customerAddress"}
	receiptKeys        = []string{"receiptNumber", "receipt_number", "receiptNo", "receipt_no"}
	etaKeys            = []string{"trackingEta", "tracking_eta", "eta"}
	locationKeys       = []string{"trackingLocation", "tracking_location", "location"}
)

// Normalizer turns raw records into canonical bookings. The zero value uses
// PlaceholderPrefix for synthesized ids.
type Normalizer struct {
	Prefix string
}

// Normalize uses the default placeholder prefix.
func Normalize(raw models.RawRecord, fallbackIndex int) (models.Booking, bool) {
	return Normalizer{}.Normalize(raw, fallbackIndex)
}

// Normalize returns false only when raw is not an object. Every other field
// is defaulted; dates are carried through untouched.
func (n Normalizer) Normalize(raw models.RawRecord, fallbackIndex int) (models.Booking, bool) {
	if raw == nil {
		return models.Booking{}, false
	}

	b := models.Booking{
		OrderID:           pickString(raw, orderIDKeys),
		CreatedAt:         pickString(raw, createdAtKeys),
		UserEmail:         NormalizeEmail(pickString(raw, emailKeys)),
		Model:             pickString(raw, modelKeys),
		Service:           pickString(raw, serviceKeys),
		Payment:           pickString(raw, paymentKeys),
		Total:             pickTotal(raw, totalKeys),
		ScheduleDate:      pickString(raw, scheduleDateKeys),
		ScheduleTime:      pickString(raw, scheduleTimeKeys),
		ScheduledAt:       pickString(raw, scheduledAtKeys),
		ScheduleLabel:     pickString(raw, scheduleLabelKeys),
		Status:            pickString(raw, statusKeys),
		FulfillmentStatus: pickString(raw, fulfillmentKeys),
		ReviewDecision:    pickString(raw, reviewDecisionKeys),
		ShippingAddress:   pickString(raw, addressKeys),
		ReceiptNumber:     pickString(raw, receiptKeys),
		TrackingETA:       pickString(raw, etaKeys),
		TrackingLocation:  pickString(raw, locationKeys),
	}

	if b.OrderID == "" {
		prefix := n.Prefix
		if prefix == "" {
			prefix = PlaceholderPrefix
		}
		b.OrderID = fmt.Sprintf("%s%d", prefix, fallbackIndex)
		b.Synthetic = true
	}
	return b, true
}

func pickString(raw models.RawRecord, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

// pickTotal returns an invalid NullDecimal when no key holds a usable,
// non-negative amount. An explicit 0 is valid.
func pickTotal(raw models.RawRecord, keys []string) decimal.NullDecimal {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if d, ok := decimalValue(v); ok {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

func decimalValue(v any) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case json.Number:
		parsed, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, false
		}
		d = parsed
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, x)
		if cleaned == "" {
			return decimal.Zero, false
		}
		parsed, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, false
		}
		d = parsed
	default:
		return decimal.Zero, false
	}
	if d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
