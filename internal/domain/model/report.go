package model

import "time"

// RiskLevel is the coarse tier derived from a risk score.
type RiskLevel string

// Risk tiers.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// LifestyleImpact summarizes how much stress, diet and sleep contribute.
type LifestyleImpact string

// Lifestyle impact tiers.
const (
	ImpactLow         LifestyleImpact = "low"
	ImpactModerate    LifestyleImpact = "moderate"
	ImpactSignificant LifestyleImpact = "significant"
)

// Report is the result of one assessment. Values are never mutated after
// they are produced; merging builds a new Report.
type Report struct {
	OverallRiskLevel   RiskLevel       `json:"overallRiskLevel"`
	RiskScore          int             `json:"riskScore"`
	LifestyleImpact    LifestyleImpact `json:"lifestyleImpact"`
	PossibleCauses     []string        `json:"possibleCauses"`
	Recommendations    []string        `json:"recommendations"`
	ScalpHealthWarning bool            `json:"scalpHealthWarning"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// Clone returns a deep copy so callers can derive a new report safely.
func (r Report) Clone() Report {
	out := r
	out.PossibleCauses = append([]string(nil), r.PossibleCauses...)
	out.Recommendations = append([]string(nil), r.Recommendations...)
	return out
}

// ReportSource records how a stored report was produced.
type ReportSource string

// Report sources.
const (
	SourceRules  ReportSource = "rules"
	SourceMerged ReportSource = "merged"
)

// ReportRecord is a persisted report. The embedded Report is flattened in
// JSON.
type ReportRecord struct {
	ID              string       `json:"id"`
	ProfileID       string       `json:"profile_id"`
	QuestionnaireID string       `json:"questionnaire_id,omitempty"`
	Source          ReportSource `json:"source"`
	Report
}

