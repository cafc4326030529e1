package pipeline

import (
	"context"
	"errors"
	"strings"
)

// ClassifyStage assigns a document type by keyword scoring over the
// recovered text. Scoring is deterministic; ties resolve in label order.
type ClassifyStage struct{}

var classifierLabels = []string{"invoice", "receipt", "contract", "report"}

var classifierKeywords = map[string][]string{
	"invoice":  {"invoice", "invoice number", "bill to", "amount due", "due date", "payment terms"},
	"receipt":  {"receipt", "paid", "change due", "cashier", "subtotal", "thank you for your purchase"},
	"contract": {"contract", "agreement", "party", "parties", "hereby", "terms and conditions", "signature", "witness"},
	"report":   {"report", "summary", "findings", "analysis", "conclusion", "quarter", "overview"},
}

func (s *ClassifyStage) Name() string { return "classify" }

func (s *ClassifyStage) Run(ctx context.Context, in Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return Output{}, errors.New("no text to classify")
	}

	lower := strings.ToLower(in.Text)
	best := "other"
	bestScore := 0
	for _, label := range classifierLabels {
		score := 0
		for _, kw := range classifierKeywords[label] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best = label
			bestScore = score
		}
	}
	return Output{DocumentType: best}, nil
}
