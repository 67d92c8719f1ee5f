package ioc

import (
	"sync"

	"github.com/toutaio/toutago-ioc/typeid"
)

// planCache caches the constructor selected for each implementation so
// repeated resolves skip candidate selection and template evaluation.
type planCache struct {
	mu sync.RWMutex

	plans map[typeid.ID]plan

	// generation is bumped whenever constructors change; plans computed
	// against an older generation are not stored.
	generation uint64
}

// plan is a cached selection. ok is false for types that cannot be built.
type plan struct {
	ctor Constructor
	ok   bool
}

func newPlanCache() *planCache {
	return &planCache{
		plans: make(map[typeid.ID]plan),
	}
}

// getOrCompute retrieves or computes the plan for impl.
func (pc *planCache) getOrCompute(impl typeid.ID, compute func() (Constructor, bool, error)) (Constructor, bool, error) {
	// Fast path: check cache with read lock
	pc.mu.RLock()
	cached, exists := pc.plans[impl]
	generation := pc.generation
	pc.mu.RUnlock()

	if exists {
		return cached.ctor, cached.ok, nil
	}

	ctor, ok, err := compute()
	if err != nil {
		return Constructor{}, false, err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	// Double-check after acquiring write lock
	if cached, exists = pc.plans[impl]; exists {
		return cached.ctor, cached.ok, nil
	}
	if pc.generation == generation {
		pc.plans[impl] = plan{ctor: ctor, ok: ok}
	}
	return ctor, ok, nil
}

// invalidate drops every cached plan.
func (pc *planCache) invalidate() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.plans = make(map[typeid.ID]plan)
	pc.generation++
}

// size returns the number of cached plans.
func (pc *planCache) size() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.plans)
}
