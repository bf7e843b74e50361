package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// UnknownProductLabel is shown for events that carry neither a name nor a product key.
const UnknownProductLabel = "Product unknown"

// PredictionEvent represents one stock forecast emitted by the backend forecasting service.
// Fields that are missing or malformed on the wire decode to their absent value rather than
// failing the whole event.
type PredictionEvent struct {
	ID             string   `json:"id"`
	Product        string   `json:"product"`
	Name           *string  `json:"name,omitempty"`
	Stock          *float64 `json:"stock,omitempty"`
	PredictionDate string   `json:"prediction_date"`
}

// HasProduct reports whether the event carries a usable grouping key
func (p PredictionEvent) HasProduct() bool {
	return p.Product != ""
}

// StockValue returns the predicted stock, treating a missing value as zero
func (p PredictionEvent) StockValue() float64 {
	if p.Stock == nil {
		return 0
	}
	return *p.Stock
}

// DisplayName returns the product name or a label synthesized from the product key
func (p PredictionEvent) DisplayName() string {
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		return *p.Name
	}
	if p.Product != "" {
		return "Product " + p.Product
	}
	return UnknownProductLabel
}

// Timestamp parses PredictionDate. Unparsable dates yield an invalid Instant.
func (p PredictionEvent) Timestamp() Instant {
	return ParseInstant(p.PredictionDate)
}

// UnmarshalJSON decodes an event while tolerating missing, null and mistyped fields.
// Only a document that is not a JSON object is rejected.
func (p *PredictionEvent) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("prediction event must be a JSON object: %w", err)
	}

	*p = PredictionEvent{
		ID:             scalarString(fields["id"]),
		Product:        scalarString(fields["product"]),
		PredictionDate: scalarString(fields["prediction_date"]),
	}
	if name := scalarString(fields["name"]); name != "" {
		p.Name = &name
	}
	p.Stock = numericValue(fields["stock"])

	return nil
}

// scalarString renders a JSON string or number as text; anything else becomes "".
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return ""
}

// numericValue accepts JSON numbers and numeric strings
func numericValue(raw json.RawMessage) *float64 {
	text := scalarString(raw)
	if text == "" {
		return nil
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Instant is a parsed prediction timestamp. The zero value is invalid and orders before
// every valid instant.
type Instant struct {
	Time  time.Time
	Valid bool
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant parses an ISO-8601 timestamp. Values without a zone are read as UTC.
func ParseInstant(value string) Instant {
	value = strings.TrimSpace(value)
	if value == "" {
		return Instant{}
	}

	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Instant{Time: t, Valid: true}
		}
	}

	return Instant{}
}

// Compare returns -1, 0 or +1 depending on whether i is before, equal to or after other
func (i Instant) Compare(other Instant) int {
	switch {
	case !i.Valid && !other.Valid:
		return 0
	case !i.Valid:
		return -1
	case !other.Valid:
		return 1
	}
	return i.Time.Compare(other.Time)
}
