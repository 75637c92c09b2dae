package quota

import (
	"strings"
	"testing"

	"github.com/advisorai/admission-gate/internal/models"

	"github.com/stretchr/testify/assert"
)

func testPricing() models.PricingConfig {
	return models.PricingConfig{
		PerCallFixedCost:   0.01,
		InputRatePer1K:     0.003,
		OutputRatePer1K:    0.015,
		DefaultOutputChars: 4000,
	}
}

func TestEstimateSingleCall(t *testing.T) {
	e := NewEstimator(testPricing())

	// 4000 input chars -> 1000 tokens; default 4000 output chars -> 1000 tokens.
	cost := e.Estimate(&models.AdmissionRequest{
		Input: strings.Repeat("a", 4000),
	})

	// 0.01 + 1.0*0.003 + 1.0*0.015
	assert.InDelta(t, 0.028, cost, 1e-9)
}

func TestEstimateScalesWithAgentFanout(t *testing.T) {
	e := NewEstimator(testPricing())

	req := &models.AdmissionRequest{
		Input:      strings.Repeat("a", 4000),
		AgentTypes: []string{"strategic", "financial", "operational"},
	}

	assert.InDelta(t, 3*0.028, e.Estimate(req), 1e-9)
}

func TestEstimateHonorsOutputOverride(t *testing.T) {
	e := NewEstimator(testPricing())

	cost := e.Estimate(&models.AdmissionRequest{
		Input:                strings.Repeat("a", 4000),
		EstimatedOutputChars: 8000,
	})

	// Output doubles to 2000 tokens.
	assert.InDelta(t, 0.01+0.003+2*0.015, cost, 1e-9)
}

func TestEstimateEmptyInputStillHasFloor(t *testing.T) {
	e := NewEstimator(testPricing())

	cost := e.Estimate(&models.AdmissionRequest{})
	assert.Greater(t, cost, 0.0)
}

func TestEstimateNeverNegative(t *testing.T) {
	e := NewEstimator(models.PricingConfig{})
	assert.GreaterOrEqual(t, e.Estimate(&models.AdmissionRequest{Input: "hi"}), 0.0)
}
