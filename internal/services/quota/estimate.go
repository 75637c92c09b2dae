package quota

import (
	"github.com/advisorai/admission-gate/internal/models"
)

// Estimator produces the pre-request cost estimate used for quota
// reservation. It is deliberately coarse and fast: token counts are
// approximated as chars/4, and it only needs to keep realized spend
// under the configured limits in aggregate, not match any single
// request's true cost.
type Estimator struct {
	pricing models.PricingConfig
}

// NewEstimator creates an estimator from pricing configuration.
func NewEstimator(pricing models.PricingConfig) *Estimator {
	return &Estimator{pricing: pricing}
}

// Estimate prices one admission request across the advisory calls it
// fans out to. A request with no declared agent types is priced as one
// call.
func (e *Estimator) Estimate(req *models.AdmissionRequest) float64 {
	calls := len(req.AgentTypes)
	if calls == 0 {
		calls = 1
	}

	inputTokens := approxTokens(len(req.Input))

	outputChars := req.EstimatedOutputChars
	if outputChars <= 0 {
		outputChars = e.pricing.DefaultOutputChars
	}
	outputTokens := approxTokens(outputChars)

	perCall := e.pricing.PerCallFixedCost +
		float64(inputTokens)/1000.0*e.pricing.InputRatePer1K +
		float64(outputTokens)/1000.0*e.pricing.OutputRatePer1K

	return float64(calls) * perCall
}

// approxTokens applies the chars/4 heuristic.
func approxTokens(chars int) int {
	return chars / 4
}
