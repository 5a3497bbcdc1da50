package report

import (
	"context"
	"encoding/json"
	"time"
)

// SummaryGenerator produces the opaque narrative blobs stored on the
// aggregate rows. The pipeline never interprets the content; swapping in
// an external (e.g. LLM-backed) generator changes nothing downstream.
type SummaryGenerator interface {
	PoolSummary(ctx context.Context, s *PoolSummary) (json.RawMessage, error)
	OverallSummary(ctx context.Context, fr *FinalReport, pools []*PoolSummary) (json.RawMessage, error)
}

// StaticGenerator renders a plain structural summary from the aggregate
// counts. It is the default generator.
type StaticGenerator struct{}

func (StaticGenerator) PoolSummary(_ context.Context, s *PoolSummary) (json.RawMessage, error) {
	return json.Marshal(map[string]interface{}{
		"type":               "pool_summary",
		"pool_title":         s.PoolTitle,
		"total_sections":     s.TotalSections,
		"completed_sections": s.CompletedSections,
		"total_score":        s.TotalScore,
		"max_possible_score": s.MaxPossibleScore,
		"generated_at":       s.GeneratedAt.Format(time.RFC3339),
	})
}

func (StaticGenerator) OverallSummary(_ context.Context, fr *FinalReport, pools []*PoolSummary) (json.RawMessage, error) {
	titles := make([]string, 0, len(pools))
	for _, p := range pools {
		titles = append(titles, p.PoolTitle)
	}
	return json.Marshal(map[string]interface{}{
		"type":              "final_report",
		"pools":             titles,
		"total_pools":       fr.TotalPools,
		"completed_pools":   fr.CompletedPools,
		"overall_score":     fr.OverallScore,
		"overall_max_score": fr.OverallMaxScore,
		"generated_at":      fr.GeneratedAt.Format(time.RFC3339),
	})
}
