package eligibility

import (
	"fmt"
	"strconv"
)

const (
	goldenMindsKey = "goldenMinds"
	unicornKey     = "unicorn"
)

// Rule is one row of a program's checklist.
type Rule struct {
	Label    func(in Input) string
	Met      func(in Input) bool
	Evidence func(in Input) string
}

// Program is a declarative rubric: an ordered rule table plus a year gate.
// Rule order is the display order and is never changed by evaluation.
type Program struct {
	Type  GrantType
	Key   string
	Years []int // empty means every year
	Rules []Rule
}

func (p Program) admits(year int) bool {
	if len(p.Years) == 0 {
		return true
	}
	for _, y := range p.Years {
		if y == year {
			return true
		}
	}
	return false
}

func (p Program) evaluate(in Input) Report {
	rep := Report{
		GrantType: p.Type,
		Criteria:  make([]CriterionResult, 0, len(p.Rules)),
	}
	met := 0
	for _, r := range p.Rules {
		ok := r.Met(in)
		if ok {
			met++
		}
		rep.Criteria = append(rep.Criteria, CriterionResult{
			Label:    r.Label(in),
			Met:      ok,
			Evidence: r.Evidence(in),
		})
	}
	rep.Percentage = percentage(met, len(p.Rules))
	return rep
}

func label(s string) func(Input) string { return func(Input) string { return s } }

func retakesEvidence(in Input) string { return fmt.Sprintf("%d retakes", in.RetakeCount) }
func passesEvidence(in Input) string  { return fmt.Sprintf("%d passes", in.PassCount) }

// attendanceEvidence prints the shortest exact decimal, e.g. "85%" or "82.5%".
func attendanceEvidence(in Input) string {
	return strconv.FormatFloat(in.AttendancePercentage, 'f', -1, 64) + "%"
}

// GoldenMindsProgram is open to 2nd and 3rd year students.
func GoldenMindsProgram() Program {
	return Program{
		Type:  GoldenMinds,
		Key:   goldenMindsKey,
		Years: []int{2, 3},
		Rules: []Rule{
			{
				Label:    label("No retakes in current academic year"),
				Met:      func(in Input) bool { return in.RetakeCount == 0 },
				Evidence: retakesEvidence,
			},
			{
				Label: func(in Input) string {
					if in.Year == 3 {
						return "No 'Pass' grades"
					}
					return "Max 3 'Pass' grades"
				},
				Met: func(in Input) bool {
					if in.Year == 3 {
						return in.PassCount == 0
					}
					return in.PassCount <= 3
				},
				Evidence: passesEvidence,
			},
			{
				Label:    label("High attendance (≥80%)"),
				Met:      func(in Input) bool { return in.AttendancePercentage >= 80 },
				Evidence: attendanceEvidence,
			},
		},
	}
}

// UnicornProgram is open to every year.
func UnicornProgram() Program {
	return Program{
		Type: Unicorn,
		Key:  unicornKey,
		Rules: []Rule{
			{
				Label:    label("Max 2 retakes"),
				Met:      func(in Input) bool { return in.RetakeCount <= 2 },
				Evidence: retakesEvidence,
			},
			{
				Label:    label("High grades"),
				Met:      func(in Input) bool { return in.PassCount <= 5 },
				Evidence: passesEvidence,
			},
			{
				Label:    label("High attendance (≥75%)"),
				Met:      func(in Input) bool { return in.AttendancePercentage >= 75 },
				Evidence: attendanceEvidence,
			},
		},
	}
}
