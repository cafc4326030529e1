package pipeline

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// SummarizeStage produces a short extractive summary from the leading
// sentences of the recovered text.
type SummarizeStage struct {
	MaxSentences int
	MaxRunes     int
}

func (s *SummarizeStage) Name() string { return "summarize" }

func (s *SummarizeStage) Run(ctx context.Context, in Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Output{}, errors.New("no text to summarize")
	}

	maxSentences := s.MaxSentences
	if maxSentences <= 0 {
		maxSentences = 3
	}
	maxRunes := s.MaxRunes
	if maxRunes <= 0 {
		maxRunes = 400
	}

	summary := leadingSentences(text, maxSentences)
	if runes := []rune(summary); len(runes) > maxRunes {
		summary = strings.TrimRightFunc(string(runes[:maxRunes]), unicode.IsSpace) + "…"
	}
	return Output{Fields: []Field{{Key: "summary", Value: summary}}}, nil
}

func leadingSentences(text string, limit int) string {
	normalized := strings.Join(strings.Fields(text), " ")
	var b strings.Builder
	count := 0
	for i, r := range normalized {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			next := i + 1
			if next >= len(normalized) || normalized[next] == ' ' {
				count++
				if count >= limit {
					break
				}
			}
		}
	}
	return strings.TrimSpace(b.String())
}
