package loadgen

import (
	"context"
	"fmt"

	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/internal/domain/scoring"
	"github.com/okian/follicle/pkg/logger"
)

// verify checks that rule-only reports match the local engine, that no
// replayed key produced a second report and that each profile's latest
// report is one the run created.
func verify(ctx context.Context, c *client, subs []Submission, results []Result, stats *Stats) error {
	log := logger.Get().Named("loadgen")
	engine := scoring.NewEngine()

	var problems []string
	created := make(map[string]map[string]bool)
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		s := subs[i]
		if created[s.ProfileID] == nil {
			created[s.ProfileID] = make(map[string]bool)
		}
		created[s.ProfileID][r.Record.ID] = true

		if r.Record.Source == model.SourceRules {
			want := engine.Score(s.Answers)
			if r.Record.RiskScore != want.RiskScore || r.Record.OverallRiskLevel != want.OverallRiskLevel {
				stats.Mismatched++
				problems = append(problems, fmt.Sprintf("submission %d: got %d/%s, want %d/%s",
					i, r.Record.RiskScore, r.Record.OverallRiskLevel, want.RiskScore, want.OverallRiskLevel))
			}
		}
	}

	// a replay may only succeed when the original failed
	for i, s := range subs {
		if !s.Replay || results[i].Err != nil {
			continue
		}
		for j := i - 1; j >= 0 && subs[j].Key == s.Key; j-- {
			if results[j].Err == nil {
				stats.Mismatched++
				problems = append(problems, fmt.Sprintf("submission %d: replayed key %s created a second report", i, s.Key))
				break
			}
		}
	}

	for profileID, ids := range created {
		latest, err := c.history(ctx, profileID, 1)
		if err != nil {
			problems = append(problems, fmt.Sprintf("profile %s: history: %v", profileID, err))
			continue
		}
		if len(latest) != 1 || !ids[latest[0].ID] {
			problems = append(problems, fmt.Sprintf("profile %s: latest report is not one of ours", profileID))
		}
	}

	if len(problems) > 0 {
		for _, p := range problems {
			log.Error(ctx, "verification problem", logger.String("detail", p))
		}
		return fmt.Errorf("%w: %d problems, first: %s", ErrVerification, len(problems), problems[0])
	}
	log.Info(ctx, "verification passed", logger.Int("profiles", len(created)))
	return nil
}
