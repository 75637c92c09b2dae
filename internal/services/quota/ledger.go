// Package quota accounts per-client usage over multiple time windows,
// for request counts and monetary cost. Counters live in the durable
// store so concurrent requests from the same client identity increment
// atomically; when the store is unreachable the ledger degrades to an
// in-process limiter rather than blocking fail-closed.
package quota

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/services/store"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// windowGrace keeps a rolled-over counter key around briefly past its
// boundary so late commits still land somewhere observable.
const windowGrace = time.Minute

// Ledger reserves and commits usage against the configured window
// limits. Reset is lazy: window keys embed their start time and expire
// with the window, so an idle client's counters simply age out.
type Ledger struct {
	primary  store.Store
	fallback *store.MemoryStore
	cfg      models.QuotaConfig
	degraded atomic.Bool
	now      func() time.Time
}

// NewLedger builds a ledger over the shared store. The in-process
// fallback is created unconditionally; it only sees traffic while the
// primary store is erroring.
func NewLedger(primary store.Store, cfg models.QuotaConfig) (*Ledger, error) {
	fallback, err := store.NewMemory(10_000)
	if err != nil {
		return nil, fmt.Errorf("failed to create quota fallback store: %w", err)
	}
	return &Ledger{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
	l.fallback.SetClock(now)
}

// Degraded reports whether the last store round trip fell back to the
// in-process limiter.
func (l *Ledger) Degraded() bool {
	return l.degraded.Load()
}

func (l *Ledger) burst() time.Duration {
	return time.Duration(l.cfg.BurstWindowSeconds) * time.Second
}

func (l *Ledger) windowKey(clientID string, metric models.QuotaMetric, kind models.WindowKind, start time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%s:%d", clientID, metric, kind, start.Unix())
}

func windowsFor(metric models.QuotaMetric) []models.WindowKind {
	if metric == models.MetricCost {
		return models.CostWindows
	}
	return models.RequestWindows
}

// Reserve checks the metric's window families tightest-first and
// increments each until one would overflow. The first overflowing
// family rejects the reservation; increments already applied to
// tighter windows are rolled back so a rejected request consumes
// nothing.
func (l *Ledger) Reserve(ctx context.Context, clientID string, metric models.QuotaMetric, amount float64) *models.Reservation {
	if !l.cfg.Enabled {
		return &models.Reservation{Allowed: true, Metric: metric}
	}

	res := &models.Reservation{Allowed: true, Metric: metric}
	limits := l.cfg.LimitsFor(metric)
	now := l.now()

	// Each entry remembers the store that took its increment: a
	// degradation flip mid-reservation must not roll back against the
	// other store.
	type applied struct {
		key string
		ttl time.Duration
		st  store.Store
	}
	var rollback []applied

	for _, kind := range windowsFor(metric) {
		limit := limits.Limit(kind)
		if limit <= 0 {
			continue
		}

		start := kind.WindowStart(now, l.burst())
		key := l.windowKey(clientID, metric, kind, start)
		ttl := start.Add(kind.Duration(l.burst())).Sub(now) + windowGrace

		total, allowed, st := l.reserveOne(ctx, key, amount, limit, ttl)

		window := models.QuotaWindow{Kind: kind, Count: total, Limit: limit, WindowStart: start}
		res.Windows = append(res.Windows, window)

		if !allowed {
			for _, a := range rollback {
				if _, err := a.st.IncrByFloat(ctx, a.key, -amount, a.ttl); err != nil {
					fiberlog.Warnf("QuotaLedger: rollback failed for %s: %v", a.key, err)
				}
			}
			res.Allowed = false
			res.DeniedBy = kind
			res.RetryAfter = retryAfterSeconds(now, window.ResetAt(l.burst()))
			res.Degraded = l.degraded.Load()
			return res
		}
		rollback = append(rollback, applied{key: key, ttl: ttl, st: st})
	}

	res.Degraded = l.degraded.Load()
	return res
}

// reserveOne tries the primary store and degrades to the in-process
// fallback on error. Within one degraded stretch the fallback still
// enforces limits for this process. The returned store is the one that
// took the increment, so the caller can undo it in place.
func (l *Ledger) reserveOne(ctx context.Context, key string, amount, limit float64, ttl time.Duration) (float64, bool, store.Store) {
	if !l.degraded.Load() {
		total, allowed, err := l.primary.Reserve(ctx, key, amount, limit, ttl)
		if err == nil {
			return total, allowed, l.primary
		}
		l.markDegraded(err)
	} else if err := l.primary.Ping(ctx); err == nil {
		l.markRecovered()
		total, allowed, err := l.primary.Reserve(ctx, key, amount, limit, ttl)
		if err == nil {
			return total, allowed, l.primary
		}
		l.markDegraded(err)
	}

	total, allowed, _ := l.fallback.Reserve(ctx, key, amount, limit, ttl)
	return total, allowed, l.fallback
}

// Commit trues the reservation up with the measured actual amount. The
// delta may be negative when the estimate overshot. Estimation error is
// accepted as a bounded approximation and never reconciled
// retroactively.
func (l *Ledger) Commit(ctx context.Context, clientID string, metric models.QuotaMetric, estimated, actual float64) {
	if !l.cfg.Enabled {
		return
	}

	delta := actual - estimated
	if delta == 0 {
		return
	}

	limits := l.cfg.LimitsFor(metric)
	now := l.now()

	for _, kind := range windowsFor(metric) {
		if limits.Limit(kind) <= 0 {
			continue
		}
		start := kind.WindowStart(now, l.burst())
		key := l.windowKey(clientID, metric, kind, start)
		ttl := start.Add(kind.Duration(l.burst())).Sub(now) + windowGrace

		if _, err := l.active().IncrByFloat(ctx, key, delta, ttl); err != nil {
			fiberlog.Warnf("QuotaLedger: commit failed for %s: %v", key, err)
		}
	}
}

// Snapshot reads the current windows for one client across both metric
// families, for headers and the operator surface.
func (l *Ledger) Snapshot(ctx context.Context, clientID string) map[models.QuotaMetric][]models.QuotaWindow {
	out := make(map[models.QuotaMetric][]models.QuotaWindow, 2)
	now := l.now()

	for _, metric := range []models.QuotaMetric{models.MetricRequests, models.MetricCost} {
		limits := l.cfg.LimitsFor(metric)
		for _, kind := range windowsFor(metric) {
			limit := limits.Limit(kind)
			if limit <= 0 {
				continue
			}
			start := kind.WindowStart(now, l.burst())
			count, err := l.active().GetFloat(ctx, l.windowKey(clientID, metric, kind, start))
			if err != nil {
				fiberlog.Debugf("QuotaLedger: snapshot read failed: %v", err)
			}
			out[metric] = append(out[metric], models.QuotaWindow{
				Kind: kind, Count: count, Limit: limit, WindowStart: start,
			})
		}
	}
	return out
}

func (l *Ledger) active() store.Store {
	if l.degraded.Load() {
		return l.fallback
	}
	return l.primary
}

func (l *Ledger) markDegraded(err error) {
	if l.degraded.CompareAndSwap(false, true) {
		fiberlog.Errorf("QuotaLedger: durable store unreachable, degrading to in-process limiter (per-process limits only): %v", err)
	}
}

func (l *Ledger) markRecovered() {
	if l.degraded.CompareAndSwap(true, false) {
		fiberlog.Info("QuotaLedger: durable store recovered, leaving degraded mode")
	}
}

func retryAfterSeconds(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
