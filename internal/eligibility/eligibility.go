package eligibility

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when the counters handed to the evaluator are
// outside their domain. Callers map it to a 4xx response.
var ErrInvalidInput = errors.New("invalid eligibility input")

type GrantType string

const (
	GoldenMinds GrantType = "golden_minds"
	Unicorn     GrantType = "unicorn"
)

// Input is the pre-aggregated academic record of one student.
type Input struct {
	Year                 int     `json:"year"`
	AttendancePercentage float64 `json:"attendancePercentage"`
	RetakeCount          int     `json:"retakeCount"`
	PassCount            int     `json:"passCount"`
}

func (in Input) Validate() error {
	if in.Year < 1 || in.Year > 4 {
		return fmt.Errorf("%w: year %d not in 1..4", ErrInvalidInput, in.Year)
	}
	if in.RetakeCount < 0 {
		return fmt.Errorf("%w: negative retake count %d", ErrInvalidInput, in.RetakeCount)
	}
	if in.PassCount < 0 {
		return fmt.Errorf("%w: negative pass count %d", ErrInvalidInput, in.PassCount)
	}
	a := in.AttendancePercentage
	if math.IsNaN(a) || a < 0 || a > 100 {
		return fmt.Errorf("%w: attendance %v not in [0,100]", ErrInvalidInput, a)
	}
	return nil
}

type CriterionResult struct {
	Label    string `json:"label"`
	Met      bool   `json:"met"`
	Evidence string `json:"value"`
}

type Report struct {
	GrantType  GrantType         `json:"grantType"`
	Percentage int               `json:"percentage"`
	Criteria   []CriterionResult `json:"criteria"`
}

// Result holds one entry per program known to the evaluator, keyed by the
// program's JSON key. Programs the student's year is not eligible for map
// to nil, which serializes as null.
type Result map[string]*Report

func (r Result) GoldenMinds() *Report { return r[goldenMindsKey] }
func (r Result) Unicorn() *Report     { return r[unicornKey] }

// ByGrant returns the report for a grant type, or nil if absent.
func (r Result) ByGrant(gt GrantType) *Report {
	for _, rep := range r {
		if rep != nil && rep.GrantType == gt {
			return rep
		}
	}
	return nil
}

// Evaluator runs a fixed set of programs over an Input.
type Evaluator struct {
	programs []Program
}

func NewEvaluator(programs ...Program) *Evaluator {
	ps := make([]Program, len(programs))
	copy(ps, programs)
	return &Evaluator{programs: ps}
}

// Programs returns the evaluator's programs in registration order.
func (e *Evaluator) Programs() []Program {
	out := make([]Program, len(e.programs))
	copy(out, e.programs)
	return out
}

// Evaluate computes a report for every program whose year gate admits the
// student. It never mutates shared state and is safe for concurrent use.
func (e *Evaluator) Evaluate(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out := make(Result, len(e.programs))
	for _, p := range e.programs {
		if !p.admits(in.Year) {
			out[p.Key] = nil
			continue
		}
		rep := p.evaluate(in)
		out[p.Key] = &rep
	}
	return out, nil
}

// ParseGrantType accepts only grant types the evaluator knows about.
func (e *Evaluator) ParseGrantType(s string) (GrantType, error) {
	for _, p := range e.programs {
		if string(p.Type) == s {
			return p.Type, nil
		}
	}
	return "", fmt.Errorf("%w: unknown grant type %q", ErrInvalidInput, s)
}

var defaultEvaluator = NewEvaluator(GoldenMindsProgram(), UnicornProgram())

// Default returns the evaluator configured with the Golden Minds and
// Unicorn programs.
func Default() *Evaluator { return defaultEvaluator }

// Evaluate runs the default programs.
func Evaluate(in Input) (Result, error) { return defaultEvaluator.Evaluate(in) }

// percentage is round-half-even of 100*met/total; a program without rules
// scores 0.
func percentage(met, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.RoundToEven(100 * float64(met) / float64(total)))
}
