// Package scoring turns questionnaire answers into a hair health report.
//
// The rule table here is the single source of truth for scoring. Every
// entry point (HTTP, queued jobs, the offline CLI) calls Engine.Score.
package scoring

import (
	"time"

	"github.com/okian/follicle/internal/domain/model"
)

// Score bounds and tier thresholds.
const (
	maxRiskScore        = 100
	highRiskThreshold   = 50
	mediumRiskThreshold = 25

	significantImpactThreshold = 4
	moderateImpactThreshold    = 2

	scalpWarningThreshold = 2
)

// Point values per factor.
const (
	pointsSeverityHigh   = 30
	pointsSeverityMedium = 15
	pointsFamilyHistory  = 20
	pointsStressHigh     = 15
	pointsStressModerate = 8
	pointsDietPoor       = 15
	pointsDietAverage    = 5
	pointsSleepUnder5    = 12
	pointsSleep5To7      = 5
	pointsPerScalpIssue  = 8
	pointsHeatStyling    = 5
	pointsChemical       = 8
)

// NoConcernsCause is reported when no rule produced a cause.
const NoConcernsCause = "No significant concerns identified"

// Causes.
const (
	CauseSevereShedding   = "Significant hair shedding observed"
	CauseModerateShedding = "Moderate hair shedding pattern"
	CauseGenetic          = "Genetic predisposition (family history of hair loss)"
	CauseStress           = "High stress levels affecting hair health"
	CauseNutrition        = "Nutritional deficiencies from poor diet"
	CauseSleep            = "Insufficient sleep affecting hair growth cycle"
	CauseItching          = "Scalp irritation/itching present"
	CauseDandruff         = "Dandruff condition detected"
	CauseRedness          = "Scalp inflammation/redness observed"
	CauseHeatStyling      = "Regular heat styling causing damage"
	CauseChemical         = "Chemical treatments weakening hair structure"
)

// Recommendations.
const (
	RecEarlyIntervention = "Consider early intervention strategies as genetic factors may be involved"
	RecStress            = "Practice stress management techniques like meditation, yoga, or regular exercise"
	RecDietPoor          = "Improve diet with protein-rich foods, iron, zinc, and biotin sources"
	RecDietAverage       = "Consider adding more nutrient-dense foods for hair health"
	RecSleep             = "Aim for 7-9 hours of quality sleep per night"
	RecShampoo           = "Consider using a gentle, medicated shampoo for scalp health"
	RecDermatologist     = "Consult a dermatologist for persistent scalp issues"
	RecHeatStyling       = "Reduce heat styling frequency and use heat protectant products"
	RecChemical          = "Space out chemical treatments and use deep conditioning regularly"
)

// closing holds the pair appended after all rule recommendations, per tier.
var closing = map[model.RiskLevel][2]string{
	model.RiskLow: {
		"Maintain your current healthy habits",
		"Regular scalp massage can promote blood circulation",
	},
	model.RiskMedium: {
		"Monitor changes in hair fall patterns over the next few months",
		"Consider a hair health supplement after consulting a healthcare provider",
	},
	model.RiskHigh: {
		"Schedule an appointment with a dermatologist or trichologist",
		"Document your hair condition with regular photos for tracking",
	},
}

// ClosingRecommendations returns the fixed pair appended for a tier.
func ClosingRecommendations(level model.RiskLevel) [2]string {
	return closing[level]
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock sets the time source used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Scorer produces a report from answers. It never fails.
type Scorer interface {
	Score(in model.Answers) model.Report
}

// Engine is the rule-based Scorer. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an Engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// accumulator collects points, causes and recommendations in rule order.
type accumulator struct {
	points int
	causes []string
	recs   []string
}

func (a *accumulator) add(points int, cause, rec string) {
	a.points += points
	if cause != "" {
		a.causes = append(a.causes, cause)
	}
	if rec != "" {
		a.recs = append(a.recs, rec)
	}
}

// Score evaluates the rule table against in. Unset or unknown enum values
// contribute nothing.
func (e *Engine) Score(in model.Answers) model.Report {
	var acc accumulator

	switch in.HairFallSeverity {
	case model.SeverityHigh:
		acc.add(pointsSeverityHigh, CauseSevereShedding, "")
	case model.SeverityMedium:
		acc.add(pointsSeverityMedium, CauseModerateShedding, "")
	}

	if in.FamilyHistory == model.FamilyHistoryYes {
		acc.add(pointsFamilyHistory, CauseGenetic, RecEarlyIntervention)
	}

	switch in.StressLevel {
	case model.StressHigh:
		acc.add(pointsStressHigh, CauseStress, RecStress)
	case model.StressModerate:
		acc.add(pointsStressModerate, "", "")
	}

	switch in.DietQuality {
	case model.DietPoor:
		acc.add(pointsDietPoor, CauseNutrition, RecDietPoor)
	case model.DietAverage:
		acc.add(pointsDietAverage, "", RecDietAverage)
	}

	switch in.SleepDuration {
	case model.SleepLessThan5:
		acc.add(pointsSleepUnder5, CauseSleep, RecSleep)
	case model.Sleep5To7:
		acc.add(pointsSleep5To7, "", "")
	}

	if in.ScalpItching {
		acc.add(pointsPerScalpIssue, CauseItching, "")
	}
	if in.ScalpDandruff {
		acc.add(pointsPerScalpIssue, CauseDandruff, "")
	}
	if in.ScalpRedness {
		acc.add(pointsPerScalpIssue, CauseRedness, "")
	}
	scalpIssues := in.ScalpIssueCount()
	if scalpIssues > 0 {
		acc.add(0, "", RecShampoo)
		if scalpIssues >= scalpWarningThreshold {
			acc.add(0, "", RecDermatologist)
		}
	}

	if in.UseHeatStyling {
		acc.add(pointsHeatStyling, CauseHeatStyling, RecHeatStyling)
	}
	if in.UseChemicalTreatments {
		acc.add(pointsChemical, CauseChemical, RecChemical)
	}

	score := min(acc.points, maxRiskScore)
	level := RiskLevelFor(score)

	causes := acc.causes
	if len(causes) == 0 {
		causes = []string{NoConcernsCause}
	}

	pair := closing[level]
	recs := append(acc.recs, pair[0], pair[1])

	return model.Report{
		OverallRiskLevel:   level,
		RiskScore:          score,
		LifestyleImpact:    LifestyleImpactFor(in),
		PossibleCauses:     causes,
		Recommendations:    recs,
		ScalpHealthWarning: scalpIssues >= scalpWarningThreshold,
		GeneratedAt:        e.now(),
	}
}

// RiskLevelFor maps a risk score to its tier.
func RiskLevelFor(score int) model.RiskLevel {
	switch {
	case score >= highRiskThreshold:
		return model.RiskHigh
	case score >= mediumRiskThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// LifestyleImpactFor weighs stress, diet and sleep independently of the
// overall score.
func LifestyleImpactFor(in model.Answers) model.LifestyleImpact {
	points := 0
	switch in.StressLevel {
	case model.StressHigh:
		points += 2
	case model.StressModerate:
		points++
	}
	switch in.DietQuality {
	case model.DietPoor:
		points += 2
	case model.DietAverage:
		points++
	}
	switch in.SleepDuration {
	case model.SleepLessThan5:
		points += 2
	case model.Sleep5To7:
		points++
	}

	switch {
	case points >= significantImpactThreshold:
		return model.ImpactSignificant
	case points >= moderateImpactThreshold:
		return model.ImpactModerate
	default:
		return model.ImpactLow
	}
}
