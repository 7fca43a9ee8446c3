package cart

import (
	"encoding/json"
	"fmt"
	"strings"
)

const emptySnapshot = "[]"

// Encode serializes lines to the stored snapshot format: a JSON array of
// {id, quantity, ...snapshot fields}.
func Encode(lines []Line) (string, error) {
	if len(lines) == 0 {
		return emptySnapshot, nil
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored snapshot. A value that is not a JSON array is an
// error; individual entries that cannot be read are skipped and counted.
func Decode(raw string) ([]Line, int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, 0, fmt.Errorf("decode cart: empty value")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, 0, fmt.Errorf("decode cart: %w", err)
	}

	lines := make([]Line, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		var line Line
		if err := json.Unmarshal(entry, &line); err != nil {
			skipped++
			continue
		}
		lines = append(lines, line)
	}
	normalized, dropped := normalize(lines)
	return normalized, skipped + dropped, nil
}

// normalize drops lines with quantity below 1 and merges repeated product
// ids into the first occurrence, capping the merged quantity.
func normalize(lines []Line) ([]Line, int) {
	out := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	dropped := 0
	for _, line := range lines {
		if line.Quantity < 1 {
			dropped++
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, line.Quantity)
			dropped++
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, dropped
}
