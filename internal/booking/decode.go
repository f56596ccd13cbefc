package booking

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// envelopeKeys are the wrapper fields list endpoints and exports put arrays under.
var envelopeKeys = []string{"bookings", "orders", "data", "items", "results"}

// DecodeRecords accepts a JSON array, an envelope object holding an array, or
// a single record object (the "latest booking" slot). Elements that are not
// objects come back as nil so positions stay stable; Normalize skips them.
func DecodeRecords(data []byte) ([]models.RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode booking records: %w", err)
	}

	switch x := v.(type) {
	case []any:
		return fromSlice(x), nil
	case map[string]any:
		for _, k := range envelopeKeys {
			if arr, ok := x[k].([]any); ok {
				return fromSlice(arr), nil
			}
		}
		if len(x) == 0 {
			// a cleared slot
			return nil, nil
		}
		return SingletonSource(models.RawRecord(x)), nil
	default:
		return nil, fmt.Errorf("decode booking records: unexpected %T payload", v)
	}
}

// SingletonSource wraps a single-record slot as a one-element source.
func SingletonSource(raw models.RawRecord) []models.RawRecord {
	if raw == nil {
		return nil
	}
	return []models.RawRecord{raw}
}

func fromSlice(arr []any) []models.RawRecord {
	out := make([]models.RawRecord, 0, len(arr))
	for _, el := range arr {
		m, _ := el.(map[string]any)
		out = append(out, models.RawRecord(m))
	}
	return out
}
