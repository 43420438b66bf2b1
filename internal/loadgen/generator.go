package loadgen

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/follicle/internal/domain/model"
)

// pick returns a uniform random integer in [1, n].
func pick(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 1
	}
	return int(v.Int64()) + 1
}

func coin() bool { return pick(2) == 1 }

// randomAnswers returns a complete questionnaire with every enum set to a
// recognized value.
func randomAnswers() model.Answers {
	return model.Answers{
		HairFallSeverity:      model.Severity(pick(int(model.SeverityUnknown) - 1)),
		FamilyHistory:         model.FamilyHistory(pick(int(model.FamilyHistoryUnknown) - 1)),
		StressLevel:           model.StressLevel(pick(int(model.StressUnknown) - 1)),
		DietQuality:           model.DietQuality(pick(int(model.DietUnknown) - 1)),
		SleepDuration:         model.SleepDuration(pick(int(model.SleepUnknown) - 1)),
		HairWashFrequency:     model.WashFrequency(pick(int(model.WashUnknown) - 1)),
		ScalpItching:          coin(),
		ScalpDandruff:         coin(),
		ScalpRedness:          coin(),
		UseHeatStyling:        coin(),
		UseChemicalTreatments: coin(),
	}
}

// generateSubmissions spreads n submissions over profiles round robin. Every
// dupEvery-th submission replays the previous one, key included.
func generateSubmissions(n, dupEvery int, profiles []string) []Submission {
	out := make([]Submission, n)
	for i := range out {
		if dupEvery > 0 && i > 0 && i%dupEvery == 0 {
			prev := out[i-1]
			prev.Index, prev.Replay = i, true
			out[i] = prev
			continue
		}
		out[i] = Submission{
			Index:     i,
			ProfileID: profiles[i%len(profiles)],
			Key:       uuid.NewString(),
			Answers:   randomAnswers(),
		}
	}
	return out
}
