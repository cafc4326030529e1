package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ExtractStage pulls labeled key/value pairs out of the recovered text. It
// scans "Key: Value" lines and a few common monetary and date patterns.
type ExtractStage struct{}

const maxExtractedFields = 50

var (
	keyValueLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _/#.-]{0,63}?)\s*[:\-]\s+(\S.*)$`)
	amountValue  = regexp.MustCompile(`(?i)\b(total|amount due|subtotal|balance)\b[^0-9$€£]*([$€£]?\s?\d[\d,]*(?:\.\d{2})?)`)
	dateValue    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})\b`)
)

func (s *ExtractStage) Name() string { return "extract" }

func (s *ExtractStage) Run(ctx context.Context, in Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return Output{}, errors.New("no text to extract from")
	}

	seen := make(map[string]bool)
	var fields []Field
	add := func(key, value string) {
		key = normalizeFieldKey(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" || seen[key] || len(fields) >= maxExtractedFields {
			return
		}
		seen[key] = true
		fields = append(fields, Field{Key: key, Value: value})
	}

	for _, line := range strings.Split(in.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := keyValueLine.FindStringSubmatch(line); m != nil {
			add(m[1], m[2])
			continue
		}
		if m := amountValue.FindStringSubmatch(line); m != nil {
			add(m[1], strings.TrimSpace(m[2]))
		}
	}

	if !seen["date"] {
		if m := dateValue.FindString(in.Text); m != "" {
			add("date", m)
		}
	}

	if len(fields) == 0 {
		return Output{}, errors.New("no fields recognized")
	}
	return Output{Fields: fields}, nil
}

func normalizeFieldKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.Join(strings.Fields(key), "_")
	return strings.Trim(key, "_.-")
}
