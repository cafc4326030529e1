package stats

import (
	"context"

	"docintake-backend/internal/documents"
)

// Summary is the per-user document breakdown by status.
type Summary struct {
	TotalDocuments int `json:"total_documents"`
	Pending        int `json:"pending"`
	Processing     int `json:"processing"`
	Completed      int `json:"completed"`
	Error          int `json:"error"`
}

// Service computes document statistics.
type Service struct {
	Docs documents.Repo
}

// ForUser returns the user's status breakdown. Every status appears, zero
// included, and the total is the sum of the buckets.
func (s *Service) ForUser(ctx context.Context, userID string) (Summary, error) {
	counts, err := s.Docs.CountByStatus(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Pending:    counts[documents.StatusPending],
		Processing: counts[documents.StatusProcessing],
		Completed:  counts[documents.StatusCompleted],
		Error:      counts[documents.StatusError],
	}
	summary.TotalDocuments = summary.Pending + summary.Processing + summary.Completed + summary.Error
	return summary, nil
}
