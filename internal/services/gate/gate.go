// Package gate bounds concurrent execution per operation class. Pools
// are process-local: capacity limits apply per instance, not globally.
package gate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/advisorai/admission-gate/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Gate owns one pool per operation class.
type Gate struct {
	pools map[models.GateClass]*Pool
}

// New starts a pool for every configured class.
func New(cfg models.GateConfig) *Gate {
	pools := make(map[models.GateClass]*Pool, len(cfg.Classes))
	for class, classCfg := range cfg.Classes {
		pools[class] = NewPool(class, classCfg)
		fiberlog.Infof("Gate: class %s ready (concurrency=%d, timeout=%dms, interval_cap=%d)",
			class, classCfg.Concurrency, classCfg.TimeoutMs, classCfg.IntervalCap)
	}
	return &Gate{pools: pools}
}

// Submit routes fn to the class pool and blocks for the result.
func (g *Gate) Submit(ctx context.Context, class models.GateClass, fn Task) models.GateResult {
	pool, ok := g.pools[class]
	if !ok {
		return models.GateResult{Err: fmt.Errorf("unknown gate class: %s", class)}
	}
	return pool.Submit(ctx, fn)
}

// Overloaded reports the saturation predicate for a class. Unknown
// classes read as overloaded so the admission controller rejects
// rather than dispatching into nothing.
func (g *Gate) Overloaded(class models.GateClass) bool {
	pool, ok := g.pools[class]
	if !ok {
		return true
	}
	return pool.Overloaded()
}

// Stats snapshots every pool, ordered by class name for stable output.
func (g *Gate) Stats() []models.PoolStats {
	stats := make([]models.PoolStats, 0, len(g.pools))
	for _, pool := range g.pools {
		stats = append(stats, pool.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Class < stats[j].Class })
	return stats
}

// Drain stops intake on every pool and waits for in-flight tasks.
func (g *Gate) Drain() {
	var wg sync.WaitGroup
	for _, pool := range g.pools {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Drain()
		}()
	}
	wg.Wait()
	fiberlog.Info("Gate: drained")
}

// Kill abandons everything immediately. Emergency resets only.
func (g *Gate) Kill() {
	for _, pool := range g.pools {
		pool.Kill()
	}
	fiberlog.Warn("Gate: killed, all in-flight tasks abandoned")
}
