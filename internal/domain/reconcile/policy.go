package reconcile

import (
	"fmt"
	"math"
	"sort"
)

// AgreementRule picks the final score when the first reader agrees with the
// agent.
type AgreementRule string

const (
	// AgreementReader takes the reader's score.
	AgreementReader AgreementRule = "reader"
	// AgreementMean averages the agent and reader scores.
	AgreementMean AgreementRule = "mean"
)

// DisagreementRule picks the final score once a second reader has scored.
type DisagreementRule string

const (
	// DisagreementMedian takes the median of agent, reader1 and reader2.
	DisagreementMedian DisagreementRule = "median"
	// DisagreementMean averages agent, reader1 and reader2.
	DisagreementMean DisagreementRule = "mean"
	// DisagreementArbitration leaves the test for a super_admin to finalize.
	DisagreementArbitration DisagreementRule = "arbitration"
)

// AgreementRules and DisagreementRules list every accepted rule.
var (
	AgreementRules    = []AgreementRule{AgreementReader, AgreementMean}
	DisagreementRules = []DisagreementRule{DisagreementMedian, DisagreementMean, DisagreementArbitration}
)

func (r AgreementRule) Valid() bool {
	for _, known := range AgreementRules {
		if r == known {
			return true
		}
	}
	return false
}

func (r DisagreementRule) Valid() bool {
	for _, known := range DisagreementRules {
		if r == known {
			return true
		}
	}
	return false
}

// toleranceEpsilon absorbs float rounding so that a difference of exactly
// the tolerance (e.g. 5.5 vs 5.0 at 0.5) counts as agreement.
const toleranceEpsilon = 1e-9

// Policy is the configurable reconciliation rule set.
type Policy struct {
	Tolerance    float64
	Agreement    AgreementRule
	Disagreement DisagreementRule
}

// DefaultPolicy returns tolerance 0.5, reader score on agreement, median on
// disagreement.
func DefaultPolicy() Policy {
	return Policy{Tolerance: 0.5, Agreement: AgreementReader, Disagreement: DisagreementMedian}
}

// NewPolicy builds a validated policy from configuration values.
func NewPolicy(tolerance float64, agreement AgreementRule, disagreement DisagreementRule) (Policy, error) {
	p := Policy{
		Tolerance:    tolerance,
		Agreement:    agreement,
		Disagreement: disagreement,
	}
	return p, p.Validate()
}

func (p Policy) Validate() error {
	if math.IsNaN(p.Tolerance) || math.IsInf(p.Tolerance, 0) || p.Tolerance < 0 {
		return fmt.Errorf("tolerance must be a non-negative number, got %v", p.Tolerance)
	}
	if !p.Agreement.Valid() {
		return fmt.Errorf("unknown agreement rule %q, want one of %v", p.Agreement, AgreementRules)
	}
	if !p.Disagreement.Valid() {
		return fmt.Errorf("unknown disagreement rule %q, want one of %v", p.Disagreement, DisagreementRules)
	}
	return nil
}

// Agrees reports whether |a - b| <= Tolerance.
func (p Policy) Agrees(a, b float64) bool {
	return math.Abs(a-b) <= p.Tolerance+toleranceEpsilon
}

// AgreedScore is the final score when reader1 agrees with the agent.
func (p Policy) AgreedScore(agent, reader1 float64) float64 {
	if p.Agreement == AgreementMean {
		return (agent + reader1) / 2
	}
	return reader1
}

// ResolveDisagreement returns the final score after a second reader, or
// finalize=false when the policy defers to arbitration.
func (p Policy) ResolveDisagreement(agent, reader1, reader2 float64) (score float64, finalize bool) {
	switch p.Disagreement {
	case DisagreementArbitration:
		return 0, false
	case DisagreementMean:
		return (agent + reader1 + reader2) / 3, true
	default:
		return median(agent, reader1, reader2), true
	}
}

func median(vals ...float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
