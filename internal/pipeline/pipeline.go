package pipeline

import (
	"fmt"
	"strings"
)

// Build assembles a pipeline from stage names, preserving order. Names are
// case-insensitive; duplicates and unknown names are rejected.
func Build(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one stage")
	}

	seen := make(map[string]bool, len(names))
	stages := make([]Stage, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage %q", name)
		}
		seen[name] = true

		stage, err := newStage(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one stage")
	}
	return stages, nil
}

// ParseStageList splits a comma-separated stage list, e.g. from config.
func ParseStageList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func newStage(name string) (Stage, error) {
	switch name {
	case "ocr":
		return &OCRStage{}, nil
	case "classify":
		return &ClassifyStage{}, nil
	case "extract":
		return &ExtractStage{}, nil
	case "summarize":
		return &SummarizeStage{}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}
