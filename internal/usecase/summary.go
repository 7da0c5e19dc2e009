package usecase

import "context"

// GradeSummary represents the persisted grade distribution.
type GradeSummary struct {
	Total  int64            `json:"total"`
	Grades map[string]int64 `json:"grades"`
}

// GetGradeSummary aggregates the grade distribution from the store routed
// for the request origin.
func (uc *ConditionUseCase) GetGradeSummary(ctx context.Context, originHost string) (*GradeSummary, error) {
	counts, err := uc.router.Resolve(originHost).GradeCounts(ctx)
	if err != nil {
		return nil, err
	}

	summary := &GradeSummary{Grades: make(map[string]int64, len(counts))}
	for _, c := range counts {
		summary.Grades[c.GradeCode] = c.Count
		summary.Total += c.Count
	}
	return summary, nil
}
