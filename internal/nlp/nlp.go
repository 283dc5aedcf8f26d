package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FallbackIntent is reported when the text could not be classified.
const FallbackIntent = "INTENT.Fallback"

var ErrEmptyResponse = errors.New("nlp: empty classifier response")

// Result is the classification of one message. Slots hold the extracted values
// by name ("date", "date1", "duration").
type Result struct {
	Intent string
	Slots  map[string]string
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// ParseResult decodes the classifier's JSON object. Non-string slot values are
// rendered as text; empty and null values are dropped.
func ParseResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, ErrEmptyResponse
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Result{}, fmt.Errorf("nlp: decode classifier response: %w", err)
	}

	res := Result{Intent: FallbackIntent, Slots: map[string]string{}}
	for k, v := range fields {
		var s string
		switch val := v.(type) {
		case string:
			s = strings.TrimSpace(val)
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			continue
		}
		if s == "" {
			continue
		}
		if k == "intent" {
			res.Intent = s
			continue
		}
		res.Slots[k] = s
	}
	return res, nil
}
