// Package confidence defines the confidence score attached to every answered turn.
package confidence

// Method names how a score was produced.
type Method string

const (
	MethodHybrid        Method = "hybrid"         // keyword + self-assessment
	MethodKeywordOnly   Method = "keyword_only"   // self-assessment unavailable
	MethodErrorOverride Method = "error_override" // empty/error answer, forced to 0.0
	MethodManual        Method = "manual"         // operator-triggered escalation
)

// ReasonDegraded marks a score whose self-assessment component was unavailable.
const ReasonDegraded = "degraded_evaluation"

// Score is a [0,1] trustworthiness estimate with its component breakdown.
// Immutable once computed.
type Score struct {
	Value          float64  `json:"value"`
	Keyword        float64  `json:"keyword_component"`
	SelfEval       float64  `json:"self_eval_component"`
	WeightKeyword  float64  `json:"weight_keyword"`
	WeightSelfEval float64  `json:"weight_self_eval"`
	Method         Method   `json:"method"`
	Reasons        []string `json:"reasons"`
}

// Degraded reports whether the self-assessment component was unavailable.
func (s Score) Degraded() bool {
	for _, r := range s.Reasons {
		if r == ReasonDegraded {
			return true
		}
	}
	return false
}
