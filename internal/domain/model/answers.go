// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the self-reported hair fall severity.
type Severity uint8

// Severity variants. SeverityUnset is the zero value.
const (
	SeverityUnset Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityUnknown
)

// FamilyHistory records whether hair loss runs in the family.
type FamilyHistory uint8

// FamilyHistory variants.
const (
	FamilyHistoryUnset FamilyHistory = iota
	FamilyHistoryYes
	FamilyHistoryNo
	FamilyHistoryUnknown
)

// StressLevel is the self-reported stress level.
type StressLevel uint8

// StressLevel variants.
const (
	StressUnset StressLevel = iota
	StressLow
	StressModerate
	StressHigh
	StressUnknown
)

// DietQuality is the self-reported diet quality.
type DietQuality uint8

// DietQuality variants.
const (
	DietUnset DietQuality = iota
	DietPoor
	DietAverage
	DietGood
	DietExcellent
	DietUnknown
)

// SleepDuration is the self-reported nightly sleep bucket.
type SleepDuration uint8

// SleepDuration variants.
const (
	SleepUnset SleepDuration = iota
	SleepLessThan5
	Sleep5To7
	Sleep7To9
	SleepMoreThan9
	SleepUnknown
)

// WashFrequency is how often hair is washed.
type WashFrequency uint8

// WashFrequency variants.
const (
	WashUnset WashFrequency = iota
	WashDaily
	WashEveryOtherDay
	WashTwiceWeekly
	WashWeekly
	WashUnknown
)

var (
	severityNames = []string{"", "low", "medium", "high"}
	familyNames   = []string{"", "yes", "no"}
	stressNames   = []string{"", "low", "moderate", "high"}
	dietNames     = []string{"", "poor", "average", "good", "excellent"}
	sleepNames    = []string{"", "less_than_5", "5_to_7", "7_to_9", "more_than_9"}
	washNames     = []string{"", "daily", "every_other_day", "twice_weekly", "weekly"}
)

// lookup returns the index of s in names, unknown when s is non-empty and
// unrecognized, or 0 when s is blank.
func lookup(names []string, s string, unknown int) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	for i := 1; i < len(names); i++ {
		if names[i] == s {
			return i
		}
	}
	return unknown
}

func name(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return "unknown"
}

// ParseSeverity maps a wire value to a Severity.
func ParseSeverity(s string) Severity {
	return Severity(lookup(severityNames, s, int(SeverityUnknown)))
}

// ParseFamilyHistory maps a wire value to a FamilyHistory.
func ParseFamilyHistory(s string) FamilyHistory {
	return FamilyHistory(lookup(familyNames, s, int(FamilyHistoryUnknown)))
}

// ParseStressLevel maps a wire value to a StressLevel.
func ParseStressLevel(s string) StressLevel {
	return StressLevel(lookup(stressNames, s, int(StressUnknown)))
}

// ParseDietQuality maps a wire value to a DietQuality.
func ParseDietQuality(s string) DietQuality {
	return DietQuality(lookup(dietNames, s, int(DietUnknown)))
}

// ParseSleepDuration maps a wire value to a SleepDuration.
func ParseSleepDuration(s string) SleepDuration {
	return SleepDuration(lookup(sleepNames, s, int(SleepUnknown)))
}

// ParseWashFrequency maps a wire value to a WashFrequency.
func ParseWashFrequency(s string) WashFrequency {
	return WashFrequency(lookup(washNames, s, int(WashUnknown)))
}

func (v Severity) String() string      { return name(severityNames, int(v)) }
func (v FamilyHistory) String() string { return name(familyNames, int(v)) }
func (v StressLevel) String() string   { return name(stressNames, int(v)) }
func (v DietQuality) String() string   { return name(dietNames, int(v)) }
func (v SleepDuration) String() string { return name(sleepNames, int(v)) }
func (v WashFrequency) String() string { return name(washNames, int(v)) }

// Valid reports whether the value is one of the recognized answers.
func (v Severity) Valid() bool      { return v > SeverityUnset && v < SeverityUnknown }
func (v FamilyHistory) Valid() bool { return v > FamilyHistoryUnset && v < FamilyHistoryUnknown }
func (v StressLevel) Valid() bool   { return v > StressUnset && v < StressUnknown }
func (v DietQuality) Valid() bool   { return v > DietUnset && v < DietUnknown }
func (v SleepDuration) Valid() bool { return v > SleepUnset && v < SleepUnknown }
func (v WashFrequency) Valid() bool { return v > WashUnset && v < WashUnknown }

// Answers is a submitted questionnaire. It is treated as immutable once
// submitted.
type Answers struct {
	HairFallSeverity      Severity
	FamilyHistory         FamilyHistory
	StressLevel           StressLevel
	DietQuality           DietQuality
	SleepDuration         SleepDuration
	HairWashFrequency     WashFrequency
	ScalpItching          bool
	ScalpDandruff         bool
	ScalpRedness          bool
	UseHeatStyling        bool
	UseChemicalTreatments bool
}

// WireAnswers is the JSON shape of Answers shared by the HTTP API, the
// external signal request and the CLI.
type WireAnswers struct {
	HairFallSeverity      string `json:"hairFallSeverity"`
	FamilyHistory         string `json:"familyHistory"`
	StressLevel           string `json:"stressLevel"`
	DietQuality           string `json:"dietQuality"`
	SleepDuration         string `json:"sleepDuration"`
	HairWashFrequency     string `json:"hairWashFrequency"`
	ScalpItching          bool   `json:"scalpItching"`
	ScalpDandruff         bool   `json:"scalpDandruff"`
	ScalpRedness          bool   `json:"scalpRedness"`
	UseHeatStyling        bool   `json:"useHeatStyling"`
	UseChemicalTreatments bool   `json:"useChemicalTreatments"`
}

// Wire converts Answers to their wire form.
func (a Answers) Wire() WireAnswers {
	return WireAnswers{
		HairFallSeverity:      a.HairFallSeverity.String(),
		FamilyHistory:         a.FamilyHistory.String(),
		StressLevel:           a.StressLevel.String(),
		DietQuality:           a.DietQuality.String(),
		SleepDuration:         a.SleepDuration.String(),
		HairWashFrequency:     a.HairWashFrequency.String(),
		ScalpItching:          a.ScalpItching,
		ScalpDandruff:         a.ScalpDandruff,
		ScalpRedness:          a.ScalpRedness,
		UseHeatStyling:        a.UseHeatStyling,
		UseChemicalTreatments: a.UseChemicalTreatments,
	}
}

// Answers parses the wire form. Unrecognized values become the Unknown
// variant of their field; they are never rejected here.
func (w WireAnswers) Answers() Answers {
	return Answers{
		HairFallSeverity:      ParseSeverity(w.HairFallSeverity),
		FamilyHistory:         ParseFamilyHistory(w.FamilyHistory),
		StressLevel:           ParseStressLevel(w.StressLevel),
		DietQuality:           ParseDietQuality(w.DietQuality),
		SleepDuration:         ParseSleepDuration(w.SleepDuration),
		HairWashFrequency:     ParseWashFrequency(w.HairWashFrequency),
		ScalpItching:          w.ScalpItching,
		ScalpDandruff:         w.ScalpDandruff,
		ScalpRedness:          w.ScalpRedness,
		UseHeatStyling:        w.UseHeatStyling,
		UseChemicalTreatments: w.UseChemicalTreatments,
	}
}

// MarshalJSON encodes Answers in wire form.
func (a Answers) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Wire())
}

// UnmarshalJSON decodes Answers from wire form.
func (a *Answers) UnmarshalJSON(b []byte) error {
	var w WireAnswers
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = w.Answers()
	return nil
}

// ScalpIssueCount returns how many scalp symptoms were reported.
func (a Answers) ScalpIssueCount() int {
	n := 0
	for _, flag := range []bool{a.ScalpItching, a.ScalpDandruff, a.ScalpRedness} {
		if flag {
			n++
		}
	}
	return n
}

// IncompleteError lists required answers that are unset or unrecognized.
type IncompleteError struct {
	Fields []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete answers: %s", strings.Join(e.Fields, ", "))
}

// Is lets errors.Is match ErrIncompleteAnswers.
func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteAnswers
}

// Validate reports required fields that are missing. Scoring does not call
// it; callers that collect answers do.
func (a Answers) Validate() error {
	var missing []string
	if !a.HairFallSeverity.Valid() {
		missing = append(missing, "hairFallSeverity")
	}
	if !a.FamilyHistory.Valid() {
		missing = append(missing, "familyHistory")
	}
	if !a.StressLevel.Valid() {
		missing = append(missing, "stressLevel")
	}
	if !a.DietQuality.Valid() {
		missing = append(missing, "dietQuality")
	}
	if !a.SleepDuration.Valid() {
		missing = append(missing, "sleepDuration")
	}
	if !a.HairWashFrequency.Valid() {
		missing = append(missing, "hairWashFrequency")
	}
	if len(missing) > 0 {
		return &IncompleteError{Fields: missing}
	}
	return nil
}
