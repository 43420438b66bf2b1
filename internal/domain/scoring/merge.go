package scoring

import (
	"math"

	"github.com/okian/follicle/internal/domain/model"
)

// stageMultiplier converts an estimated severity stage into risk points.
const stageMultiplier = 15

// Signal is auxiliary output from the external predictor. Every field is
// optional.
type Signal struct {
	// EstimatedStage is the predicted hair loss stage, nil when absent.
	EstimatedStage  *float64
	PatternType     string
	Confidence      *float64
	RiskFactors     []string
	Recommendations []string
}

// Merge layers a signal over a rule-based report and reports whether any
// field was replaced. The tiers and the scalp warning always come from base.
// A nil signal returns base unchanged.
func Merge(base model.Report, sig *Signal) (model.Report, bool) {
	if sig == nil {
		return base, false
	}
	out := base.Clone()
	merged := false

	if sig.EstimatedStage != nil && *sig.EstimatedStage > 0 && !math.IsNaN(*sig.EstimatedStage) {
		out.RiskScore = int(math.Min(maxRiskScore, math.Round(*sig.EstimatedStage*stageMultiplier)))
		merged = true
	}
	if len(sig.RiskFactors) > 0 {
		out.PossibleCauses = append([]string(nil), sig.RiskFactors...)
		merged = true
	}
	if len(sig.Recommendations) > 0 {
		out.Recommendations = append([]string(nil), sig.Recommendations...)
		merged = true
	}
	return out, merged
}
