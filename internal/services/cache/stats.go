package cache

import (
	"math"
	"sync/atomic"

	"github.com/advisorai/admission-gate/internal/models"
)

// statsCollector counts lookup outcomes per level with atomics so the
// hot path never takes a lock.
type statsCollector struct {
	exactHits    atomic.Int64
	exactMisses  atomic.Int64
	semHits      atomic.Int64
	semMisses    atomic.Int64
	partHits     atomic.Int64
	partMisses   atomic.Int64
	semScoreSum  atomic.Uint64 // float64 bits, accumulated via CAS
	storeErrors  atomic.Int64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (s *statsCollector) hit(level models.CacheLevel, score float32) {
	switch level {
	case models.CacheLevelExact:
		s.exactHits.Add(1)
	case models.CacheLevelSemantic:
		s.semHits.Add(1)
		s.addScore(float64(score))
	case models.CacheLevelPartial:
		s.partHits.Add(1)
	}
}

func (s *statsCollector) miss(level models.CacheLevel) {
	switch level {
	case models.CacheLevelExact:
		s.exactMisses.Add(1)
	case models.CacheLevelSemantic:
		s.semMisses.Add(1)
	case models.CacheLevelPartial:
		s.partMisses.Add(1)
	}
}

func (s *statsCollector) storeError() {
	s.storeErrors.Add(1)
}

func (s *statsCollector) addScore(score float64) {
	for {
		old := s.semScoreSum.Load()
		next := math.Float64bits(math.Float64frombits(old) + score)
		if s.semScoreSum.CompareAndSwap(old, next) {
			return
		}
	}
}

func (s *statsCollector) snapshot() models.CacheStats {
	semHits := s.semHits.Load()
	var avg float32
	if semHits > 0 {
		avg = float32(math.Float64frombits(s.semScoreSum.Load()) / float64(semHits))
	}

	return models.CacheStats{
		Levels: map[models.CacheLevel]models.CacheLevelStats{
			models.CacheLevelExact:    {Hits: s.exactHits.Load(), Misses: s.exactMisses.Load()},
			models.CacheLevelSemantic: {Hits: semHits, Misses: s.semMisses.Load()},
			models.CacheLevelPartial:  {Hits: s.partHits.Load(), Misses: s.partMisses.Load()},
		},
		AvgSemanticSimilarity: avg,
		StoreErrors:           s.storeErrors.Load(),
	}
}
