// Package admission composes the cache hierarchy, concurrency gate and
// quota ledger into the single decision "serve from cache / run now /
// reject" for each inbound request.
package admission

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/advisorai/admission-gate/internal/config"
	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/services/cache"
	"github.com/advisorai/admission-gate/internal/services/gate"
	"github.com/advisorai/admission-gate/internal/services/quota"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// overloadRetryAfterSeconds is the retry hint attached to pre-emptive
// capacity rejections. Queues this saturated usually clear within a few
// seconds or not at all.
const overloadRetryAfterSeconds = 5

// UsageRecorder receives one audit record per decision, asynchronously.
// Satisfied by usage.Worker; nil disables recording.
type UsageRecorder interface {
	Submit(params models.RecordUsageParams, requestID string)
}

// Controller runs the per-request admission state machine.
type Controller struct {
	cfg       *config.Config
	cache     *cache.Hierarchy
	gate      *gate.Gate
	ledger    *quota.Ledger
	estimator *quota.Estimator
	recorder  UsageRecorder
}

// NewController wires the admission controller. Every collaborator is
// constructed by the caller and passed in; the controller owns no
// hidden state.
func NewController(cfg *config.Config, hierarchy *cache.Hierarchy, g *gate.Gate, ledger *quota.Ledger, recorder UsageRecorder) *Controller {
	return &Controller{
		cfg:       cfg,
		cache:     hierarchy,
		gate:      g,
		ledger:    ledger,
		estimator: quota.NewEstimator(cfg.Pricing),
		recorder:  recorder,
	}
}

// Decide runs the checks in fixed order: validation, cache (cheapest
// first), capacity, quota. The first failed check short-circuits to a
// rejection with a tagged reason and retry hint.
func (c *Controller) Decide(ctx context.Context, req *models.AdmissionRequest) *models.Decision {
	started := time.Now()
	clientID := DeriveClientID(req.IP, req.UserAgent, req.AcceptLanguage)

	decision := &models.Decision{
		ClientID: clientID,
		State:    models.StateReceived,
		Headers:  make(map[string]string),
	}

	if appErr := c.validate(req); appErr != nil {
		return c.reject(req, decision, appErr, started)
	}

	decision.EstimatedCost = c.estimator.Estimate(req)
	decision.Headers["X-Estimated-Cost"] = formatCost(decision.EstimatedCost)

	// Cache before capacity and quota: a reusable answer costs nothing
	// and consumes no budget.
	cacheReq := c.cacheRequest(req, clientID)
	if hit := c.cache.Lookup(ctx, cacheReq); hit != nil {
		fiberlog.Infof("[%s] Admission: cache hit at %s level (similarity: %.2f)", req.RequestID, hit.Level, hit.Similarity)
		decision.State = models.StateCompleted
		decision.Allowed = true
		decision.Cached = true
		decision.Value = hit.Value
		decision.CacheLevel = hit.Level
		decision.Similarity = hit.Similarity
		c.record(req, decision, 0, started)
		return decision
	}
	decision.State = models.StateCacheChecked

	// Pre-emptive saturation check: turn a would-be long queue wait
	// into an immediate, cheap rejection.
	if c.gate.Overloaded(models.ClassGeneration) {
		return c.reject(req, decision, models.NewOverloadError(string(models.ClassGeneration), overloadRetryAfterSeconds), started)
	}
	decision.State = models.StateCapacityChecked

	countRes := c.ledger.Reserve(ctx, clientID, models.MetricRequests, 1)
	if !countRes.Allowed {
		c.quotaHeaders(decision, countRes)
		return c.reject(req, decision, models.NewQuotaError(models.MetricRequests, countRes.DeniedBy, countRes.RetryAfter), started)
	}

	costRes := c.ledger.Reserve(ctx, clientID, models.MetricCost, decision.EstimatedCost)
	if !costRes.Allowed {
		// Hand back the request-count slot the rejected request no
		// longer occupies.
		c.ledger.Commit(ctx, clientID, models.MetricRequests, 1, 0)
		c.quotaHeaders(decision, costRes)
		return c.reject(req, decision, models.NewQuotaError(models.MetricCost, costRes.DeniedBy, costRes.RetryAfter), started)
	}
	decision.State = models.StateQuotaChecked

	c.quotaHeaders(decision, countRes, costRes)
	decision.State = models.StateAdmitted
	decision.Allowed = true
	fiberlog.Debugf("[%s] Admission: admitted (client: %s, estimate: %s)", req.RequestID, clientID, formatCost(decision.EstimatedCost))
	return decision
}

// Complete finishes the lifecycle of an admitted request: cache write,
// cost true-up and audit record, all fire-and-forget so the caller's
// response never waits on them.
func (c *Controller) Complete(req *models.AdmissionRequest, decision *models.Decision, value []byte, actualCost float64, started time.Time) {
	clientID := decision.ClientID
	estimated := decision.EstimatedCost

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c.cache.Store(ctx, c.cacheRequest(req, clientID), value)
		c.ledger.Commit(ctx, clientID, models.MetricCost, estimated, actualCost)
	}()

	decision.State = models.StateBilled
	c.record(req, decision, actualCost, started)
}

// Process runs the full flow for embedded callers: decide, dispatch the
// task through the generation pool, then complete. Timed-out tasks are
// surfaced as failures with nothing cached or committed.
func (c *Controller) Process(ctx context.Context, req *models.AdmissionRequest, task gate.Task) (*models.Decision, *models.GateResult) {
	started := time.Now()

	decision := c.Decide(ctx, req)
	if !decision.Allowed || decision.Cached {
		return decision, nil
	}

	result := c.gate.Submit(ctx, models.ClassGeneration, task)
	if !result.Success {
		if result.TimedOut {
			fiberlog.Warnf("[%s] Admission: task timed out (queue: %v, exec: %v)", req.RequestID, result.QueueTime, result.ExecTime)
		}
		return decision, &result
	}

	value, ok := result.Value.([]byte)
	if !ok {
		result.Success = false
		result.Err = fmt.Errorf("task produced %T, expected []byte", result.Value)
		return decision, &result
	}

	decision.State = models.StateCompleted
	decision.Value = value
	c.Complete(req, decision, value, decision.EstimatedCost, started)
	return decision, &result
}

func (c *Controller) validate(req *models.AdmissionRequest) *models.AppError {
	if req.Input == "" {
		return models.NewValidationError("input must not be empty", nil)
	}
	if max := c.cfg.Server.MaxInputBytes; max > 0 && len(req.Input) > max {
		return models.NewValidationError(fmt.Sprintf("input exceeds %d bytes", max), nil)
	}

	if req.Origin != "" {
		allowed := false
		for _, origin := range c.cfg.AllowedOriginList() {
			if origin == "*" || origin == req.Origin {
				allowed = true
				break
			}
		}
		if !allowed {
			return models.NewOriginError(req.Origin)
		}
	}

	for _, agentType := range req.AgentTypes {
		if !c.cfg.AgentAllowed(agentType) {
			return models.NewAgentError(agentType)
		}
	}
	return nil
}

func (c *Controller) cacheRequest(req *models.AdmissionRequest, clientID string) *models.CacheRequest {
	context := map[string]string{"client": clientID}
	for k, v := range req.Context {
		context[k] = v
	}
	return &models.CacheRequest{
		Input:      req.Input,
		Context:    context,
		PatternTag: req.PatternTag,
		Workload:   req.Workload,
	}
}

func (c *Controller) reject(req *models.AdmissionRequest, decision *models.Decision, appErr *models.AppError, started time.Time) *models.Decision {
	decision.State = models.StateRejected
	decision.Allowed = false
	decision.Reason = appErr.Type
	decision.ReasonDetail = appErr.Message
	decision.RetryAfterSeconds = appErr.RetryAfter
	if appErr.RetryAfter > 0 {
		decision.Headers["Retry-After"] = strconv.Itoa(appErr.RetryAfter)
	}
	fiberlog.Infof("[%s] Admission: rejected (%s: %s)", req.RequestID, appErr.Type, appErr.Message)
	c.record(req, decision, 0, started)
	return decision
}

// quotaHeaders exposes the tightest applied window in machine-readable
// form so clients can back off without parsing prose. Within one
// reservation absolute remaining picks the window (every window
// decrements by the same amount); across reservations the metrics have
// different units, so fractional headroom decides.
func (c *Controller) quotaHeaders(decision *models.Decision, reservations ...*models.Reservation) {
	var tightest *models.QuotaWindow
	for _, res := range reservations {
		w := res.Tightest()
		if w == nil {
			continue
		}
		if tightest == nil || headroomFraction(w) < headroomFraction(tightest) {
			tightest = w
		}
	}
	if tightest == nil {
		return
	}
	burst := time.Duration(c.cfg.Quota.BurstWindowSeconds) * time.Second
	decision.Headers["X-RateLimit-Limit"] = strconv.FormatFloat(tightest.Limit, 'f', -1, 64)
	decision.Headers["X-RateLimit-Remaining"] = strconv.FormatFloat(tightest.Remaining(), 'f', -1, 64)
	decision.Headers["X-RateLimit-Reset"] = strconv.FormatInt(tightest.ResetAt(burst).Unix(), 10)
	decision.Headers["X-RateLimit-Window"] = string(tightest.Kind)
}

func headroomFraction(w *models.QuotaWindow) float64 {
	if w.Limit <= 0 {
		return 1
	}
	return w.Remaining() / w.Limit
}

func (c *Controller) record(req *models.AdmissionRequest, decision *models.Decision, actualCost float64, started time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.Submit(models.RecordUsageParams{
		ClientID:      decision.ClientID,
		RequestID:     req.RequestID,
		Allowed:       decision.Allowed,
		Reason:        decision.Reason,
		CacheLevel:    decision.CacheLevel,
		EstimatedCost: decision.EstimatedCost,
		ActualCost:    actualCost,
		LatencyMs:     int(time.Since(started).Milliseconds()),
		UserAgent:     req.UserAgent,
		IPAddress:     req.IP,
	}, req.RequestID)
}

func formatCost(cost float64) string {
	return strconv.FormatFloat(cost, 'f', 6, 64)
}
