package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/follicle/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseAnswers(t *testing.T) {
	convey.Convey("Given wire answer values", t, func() {
		convey.Convey("When the values are recognized", func() {
			convey.So(model.ParseSeverity("high"), convey.ShouldEqual, model.SeverityHigh)
			convey.So(model.ParseFamilyHistory("yes"), convey.ShouldEqual, model.FamilyHistoryYes)
			convey.So(model.ParseStressLevel("moderate"), convey.ShouldEqual, model.StressModerate)
			convey.So(model.ParseDietQuality("excellent"), convey.ShouldEqual, model.DietExcellent)
			convey.So(model.ParseSleepDuration("5_to_7"), convey.ShouldEqual, model.Sleep5To7)
			convey.So(model.ParseWashFrequency("every_other_day"), convey.ShouldEqual, model.WashEveryOtherDay)
		})

		convey.Convey("When values carry stray case or whitespace", func() {
			convey.So(model.ParseSeverity("  HIGH "), convey.ShouldEqual, model.SeverityHigh)
			convey.So(model.ParseSleepDuration("Less_Than_5"), convey.ShouldEqual, model.SleepLessThan5)
		})

		convey.Convey("When values are blank", func() {
			convey.So(model.ParseSeverity(""), convey.ShouldEqual, model.SeverityUnset)
			convey.So(model.ParseDietQuality("   "), convey.ShouldEqual, model.DietUnset)
		})

		convey.Convey("When values are unrecognized", func() {
			convey.So(model.ParseSeverity("extreme"), convey.ShouldEqual, model.SeverityUnknown)
			convey.So(model.ParseStressLevel("none"), convey.ShouldEqual, model.StressUnknown)
			convey.So(model.ParseSeverity("extreme").Valid(), convey.ShouldBeFalse)
			convey.So(model.SeverityUnknown.String(), convey.ShouldEqual, "unknown")
		})
	})
}

func TestAnswersJSON(t *testing.T) {
	convey.Convey("Given answers in wire JSON", t, func() {
		raw := `{"hairFallSeverity":"medium","familyHistory":"no","stressLevel":"high",
			"dietQuality":"average","sleepDuration":"7_to_9","hairWashFrequency":"weekly",
			"scalpItching":true,"useHeatStyling":true}`

		var a model.Answers
		err := json.Unmarshal([]byte(raw), &a)

		convey.Convey("Then it decodes into closed enum values", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(a.HairFallSeverity, convey.ShouldEqual, model.SeverityMedium)
			convey.So(a.FamilyHistory, convey.ShouldEqual, model.FamilyHistoryNo)
			convey.So(a.StressLevel, convey.ShouldEqual, model.StressHigh)
			convey.So(a.DietQuality, convey.ShouldEqual, model.DietAverage)
			convey.So(a.SleepDuration, convey.ShouldEqual, model.Sleep7To9)
			convey.So(a.HairWashFrequency, convey.ShouldEqual, model.WashWeekly)
			convey.So(a.ScalpItching, convey.ShouldBeTrue)
			convey.So(a.ScalpDandruff, convey.ShouldBeFalse)
			convey.So(a.UseHeatStyling, convey.ShouldBeTrue)
		})

		convey.Convey("And encoding it again yields the wire strings", func() {
			out, err := json.Marshal(a)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldContainSubstring, `"sleepDuration":"7_to_9"`)
			convey.So(string(out), convey.ShouldContainSubstring, `"hairWashFrequency":"weekly"`)
		})
	})
}

func TestAnswersValidate(t *testing.T) {
	convey.Convey("Given answers to validate", t, func() {
		convey.Convey("When every required field is set", func() {
			a := model.Answers{
				HairFallSeverity:  model.SeverityLow,
				FamilyHistory:     model.FamilyHistoryNo,
				StressLevel:       model.StressLow,
				DietQuality:       model.DietGood,
				SleepDuration:     model.Sleep7To9,
				HairWashFrequency: model.WashDaily,
			}
			convey.So(a.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When fields are unset or unknown", func() {
			a := model.Answers{
				HairFallSeverity: model.SeverityHigh,
				StressLevel:      model.StressUnknown,
			}
			err := a.Validate()

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, model.ErrIncompleteAnswers), convey.ShouldBeTrue)

			var inc *model.IncompleteError
			convey.So(errors.As(err, &inc), convey.ShouldBeTrue)
			convey.So(inc.Fields, convey.ShouldResemble, []string{
				"familyHistory", "stressLevel", "dietQuality", "sleepDuration", "hairWashFrequency",
			})
		})
	})
}

func TestScalpIssueCount(t *testing.T) {
	convey.Convey("Given scalp symptom flags", t, func() {
		convey.So(model.Answers{}.ScalpIssueCount(), convey.ShouldEqual, 0)
		convey.So(model.Answers{ScalpRedness: true}.ScalpIssueCount(), convey.ShouldEqual, 1)
		convey.So(model.Answers{ScalpItching: true, ScalpDandruff: true, ScalpRedness: true}.ScalpIssueCount(), convey.ShouldEqual, 3)
	})
}

func TestReportClone(t *testing.T) {
	convey.Convey("Given a report", t, func() {
		r := model.Report{PossibleCauses: []string{"a"}, Recommendations: []string{"b"}}

		convey.Convey("When the clone is modified", func() {
			c := r.Clone()
			c.PossibleCauses[0] = "changed"
			c.Recommendations = append(c.Recommendations, "more")

			convey.Convey("Then the original is untouched", func() {
				convey.So(r.PossibleCauses[0], convey.ShouldEqual, "a")
				convey.So(r.Recommendations, convey.ShouldResemble, []string{"b"})
			})
		})
	})
}
