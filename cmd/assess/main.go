// Command assess scores a questionnaire offline with the rule engine.
//
//	assess -in answers.json -format text
//	cat answers.json | assess
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/internal/domain/scoring"
)

// Exit codes.
const (
	exitOK         = 0
	exitUsage      = 2
	exitInput      = 3
	exitIncomplete = 4
)

// Output formats.
const (
	formatJSON = "json"
	formatText = "text"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("assess", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		in      = fs.String("in", "-", "answers file in JSON wire format, - for stdin")
		format  = fs.String("format", formatJSON, "output format: json or text")
		lenient = fs.Bool("lenient", false, "score incomplete answers instead of failing")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *format != formatJSON && *format != formatText {
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return exitUsage
	}

	answers, err := readAnswers(*in, stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitInput
	}
	if err := answers.Validate(); err != nil && !*lenient {
		fmt.Fprintln(stderr, err)
		var inc *model.IncompleteError
		if errors.As(err, &inc) {
			return exitIncomplete
		}
		return exitInput
	}

	report := scoring.NewEngine().Score(answers)
	if *format == formatText {
		writeText(stdout, report)
		return exitOK
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(stderr, err)
		return exitInput
	}
	return exitOK
}

func readAnswers(path string, stdin io.Reader) (model.Answers, error) {
	r := stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return model.Answers{}, fmt.Errorf("open answers: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var a model.Answers
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return model.Answers{}, fmt.Errorf("decode answers: %w", err)
	}
	return a, nil
}

func writeText(w io.Writer, r model.Report) {
	fmt.Fprintf(w, "Risk level:        %s\n", strings.ToUpper(string(r.OverallRiskLevel)))
	fmt.Fprintf(w, "Risk score:        %d/100\n", r.RiskScore)
	fmt.Fprintf(w, "Lifestyle impact:  %s\n", r.LifestyleImpact)
	if r.ScalpHealthWarning {
		fmt.Fprintln(w, "Scalp warning:     multiple scalp symptoms reported")
	}
	fmt.Fprintln(w, "\nPossible causes:")
	for _, c := range r.PossibleCauses {
		fmt.Fprintf(w, "  - %s\n", c)
	}
	fmt.Fprintln(w, "\nRecommendations:")
	for i, rec := range r.Recommendations {
		fmt.Fprintf(w, "  %d. %s\n", i+1, rec)
	}
}
