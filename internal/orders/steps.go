package orders

import (
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
)

// Sub-step names reported in StepResult.
const (
	StepResolveProduct = "resolve_product"
	StepDecrementStock = "decrement_stock"
	StepAddress        = "address"
	StepNotify         = "notify"
)

// StepResult reports how one side step of an operation went. Degraded steps
// completed with a caveat the caller may want to surface.
type StepResult struct {
	Step    string `json:"step"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

func stepSuccess(step string) StepResult {
	return StepResult{Step: step, Outcome: metrics.OutcomeSuccess}
}

func stepDegraded(step, detail string) StepResult {
	return StepResult{Step: step, Outcome: metrics.OutcomeDegraded, Detail: detail}
}

// Degraded reports whether any step did not fully succeed.
func Degraded(steps []StepResult) bool {
	for _, step := range steps {
		if step.Outcome != metrics.OutcomeSuccess {
			return true
		}
	}
	return false
}
