package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	fieldID       = "id"
	fieldQuantity = "quantity"
	fieldName     = "name"
	fieldPrice    = "price"
	fieldCategory = "category"
	fieldImage    = "image"
)

// MaxQuantity is the largest quantity a line holds. Larger values are capped
// on every mutation and on load.
const MaxQuantity = 9999

// Product is the snapshot a caller hands to AddItem. Every field besides the
// id is kept verbatim in Fields.
type Product struct {
	ID     string
	Fields map[string]json.RawMessage

	rawID json.RawMessage
}

// Line is one product and quantity entry in a cart.
type Line struct {
	ProductID string
	Quantity  int
	Fields    map[string]json.RawMessage

	rawID json.RawMessage
}

// NewProduct builds a snapshot with a string id.
func NewProduct(id string, fields map[string]any) (Product, error) {
	p := Product{ID: id, Fields: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		if k == fieldID || k == fieldQuantity {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return Product{}, fmt.Errorf("encode product field %q: %w", k, err)
		}
		p.Fields[k] = raw
	}
	return p, nil
}

func (p *Product) UnmarshalJSON(data []byte) error {
	id, rawID, fields, err := splitObject(data)
	if err != nil {
		return err
	}
	delete(fields, fieldQuantity)
	p.ID, p.rawID, p.Fields = id, rawID, fields
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	return joinObject(p.ID, p.rawID, p.Fields, nil)
}

func lineFromProduct(p Product, qty int) Line {
	fields := make(map[string]json.RawMessage, len(p.Fields))
	for k, v := range p.Fields {
		if k == fieldID || k == fieldQuantity {
			continue
		}
		fields[k] = v
	}
	return Line{
		ProductID: p.ID,
		Quantity:  qty,
		Fields:    fields,
		rawID:     p.rawID,
	}
}

func (l *Line) UnmarshalJSON(data []byte) error {
	id, rawID, fields, err := splitObject(data)
	if err != nil {
		return err
	}
	rawQty, ok := fields[fieldQuantity]
	if !ok {
		return fmt.Errorf("cart line %q has no quantity", id)
	}
	delete(fields, fieldQuantity)

	var qty float64
	if err := json.Unmarshal(rawQty, &qty); err != nil {
		return fmt.Errorf("cart line %q quantity: %w", id, err)
	}
	if qty != math.Trunc(qty) {
		return fmt.Errorf("cart line %q quantity %v is not an integer", id, qty)
	}

	l.ProductID, l.rawID, l.Fields = id, rawID, fields
	switch {
	case qty > MaxQuantity:
		l.Quantity = MaxQuantity
	case qty < 0:
		l.Quantity = 0
	default:
		l.Quantity = int(qty)
	}
	return nil
}

// addQuantity sums two positive quantities, saturating at MaxQuantity.
func addQuantity(a, b int) int {
	if b >= MaxQuantity-a {
		return MaxQuantity
	}
	return a + b
}

func capQuantity(qty int) int {
	if qty > MaxQuantity {
		return MaxQuantity
	}
	return qty
}

func (l Line) MarshalJSON() ([]byte, error) {
	qty, err := json.Marshal(l.Quantity)
	if err != nil {
		return nil, err
	}
	return joinObject(l.ProductID, l.rawID, l.Fields, qty)
}

// Field returns the raw snapshot value stored under name.
func (l Line) Field(name string) (json.RawMessage, bool) {
	raw, ok := l.Fields[name]
	return raw, ok
}

func (l Line) Name() string     { return l.stringField(fieldName) }
func (l Line) Category() string { return l.stringField(fieldCategory) }
func (l Line) Image() string    { return l.stringField(fieldImage) }

// Price parses the unit price snapshot. Numbers and numeric strings are
// accepted.
func (l Line) Price() (decimal.Decimal, bool) {
	raw, ok := l.Fields[fieldPrice]
	if !ok {
		return decimal.Zero, false
	}
	text := strings.TrimSpace(string(raw))
	if unquoted, ok := unquote(raw); ok {
		text = strings.TrimSpace(unquoted)
	}
	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

func (l Line) clone() Line {
	cp := l
	if l.Fields != nil {
		cp.Fields = make(map[string]json.RawMessage, len(l.Fields))
		for k, v := range l.Fields {
			cp.Fields[k] = v
		}
	}
	return cp
}

func (l Line) stringField(name string) string {
	raw, ok := l.Fields[name]
	if !ok {
		return ""
	}
	s, _ := unquote(raw)
	return s
}

func splitObject(data []byte) (string, json.RawMessage, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, nil, err
	}
	if fields == nil {
		return "", nil, nil, fmt.Errorf("cart entry must be an object")
	}
	rawID, ok := fields[fieldID]
	if !ok {
		return "", nil, nil, fmt.Errorf("cart entry has no id")
	}
	delete(fields, fieldID)

	id, err := parseID(rawID)
	if err != nil {
		return "", nil, nil, err
	}
	for k, v := range fields {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err == nil {
			fields[k] = buf.Bytes()
		}
	}
	if _, isString := unquote(rawID); isString {
		return id, nil, fields, nil
	}
	return id, compactID(rawID), fields, nil
}

func joinObject(id string, rawID json.RawMessage, fields map[string]json.RawMessage, qty json.RawMessage) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if len(rawID) > 0 {
		if parsed, err := parseID(rawID); err == nil && parsed == id {
			out[fieldID] = rawID
		}
	}
	if _, ok := out[fieldID]; !ok {
		encoded, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		out[fieldID] = encoded
	}
	if qty != nil {
		out[fieldQuantity] = qty
	}
	return json.Marshal(out)
}

// parseID accepts string and number ids. Numbers keep their literal text and
// are written back as numbers.
func parseID(raw json.RawMessage) (string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", fmt.Errorf("cart entry id is null")
	}
	if s, ok := unquote(raw); ok {
		return s, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", fmt.Errorf("cart entry id must be a string or number")
	}
	return num.String(), nil
}

func compactID(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func unquote(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
