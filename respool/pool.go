package respool

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// Strategy selects which idle resource to hand out on acquire. Maintain
// evicts every expired idle resource regardless of Strategy.
type Strategy string

const (
	FIFO               Strategy = "fifo"
	LIFO               Strategy = "lifo"
	LRU                Strategy = "lru"
	WeightedRoundRobin Strategy = "weighted_round_robin"
	Adaptive           Strategy = "adaptive"
)

// HealthStatus is reported by resources that implement Healthy, feeding
// the weighted and adaptive strategies' scoring.
type HealthStatus struct {
	Score float64 // 0 (unusable) .. 1 (fully healthy)
}

// Healthy is an optional interface a pooled instance may implement to
// report its own health, used to bias WeightedRoundRobin/Adaptive
// selection away from degraded resources without evicting them outright.
type Healthy interface {
	Health() HealthStatus
}

// Factory creates a new pooled instance.
type Factory[I any] func(ctx context.Context) (I, error)

// Destroyer releases an instance's underlying resources (connections,
// file handles, etc). Optional; a nil Destroyer is a no-op.
type Destroyer[I any] func(I)

// Config configures a Pool.
type Config[I any] struct {
	Factory       Factory[I]
	Destroy       Destroyer[I]
	MinSize       int
	MaxSize       int
	AcquireTimeout time.Duration
	IdleTimeout   time.Duration
	Strategy      Strategy
}

type entry[I any] struct {
	instance  I
	createdAt time.Time
	lastUsed  time.Time
	useCount  uint64
}

// Pool is a generic, bounded pool of reusable resources of type I.
type Pool[I any] struct {
	cfg Config[I]

	mu     sync.Mutex
	idle   *list.List // *entry[I], ordering depends on Strategy
	total  int        // total live instances (idle + checked out)
	closed bool
	rrCursor int

	sem *semaphore

	options options
	metrics *Metrics
}

// New constructs a Pool and eagerly creates MinSize resources.
func New[I any](ctx context.Context, cfg Config[I], opts ...Option) (*Pool[I], error) {
	if cfg.Factory == nil {
		return nil, &Error{Kind: CreateFailed, Message: "Config.Factory is required"}
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1
	}
	if cfg.Strategy == "" {
		cfg.Strategy = FIFO
	}

	p := &Pool[I]{
		cfg:  cfg,
		idle: list.New(),
		sem:  newSemaphore(cfg.MaxSize),
	}
	for _, opt := range opts {
		opt(&p.options)
	}
	if p.options.metrics != nil {
		p.metrics = p.options.metrics
	}

	for i := 0; i < cfg.MinSize; i++ {
		inst, err := cfg.Factory(ctx)
		if err != nil {
			return nil, &Error{Kind: CreateFailed, Message: err.Error()}
		}
		now := time.Now()
		p.idle.PushBack(&entry[I]{instance: inst, createdAt: now, lastUsed: now})
		p.total++
	}
	p.reportGauges()
	return p, nil
}

type options struct {
	metrics *Metrics
}

// Option configures pool-wide cross-cutting concerns (metrics).
type Option func(*options)

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Guard is an RAII-style handle to a checked-out resource. Callers MUST
// call Release (directly or via defer) exactly once.
type Guard[I any] struct {
	pool     *Pool[I]
	entryRef *entry[I]
	released bool
}

// Instance returns the underlying pooled resource.
func (g *Guard[I]) Instance() I {
	return g.entryRef.instance
}

// Release returns the resource to the pool. If healthy is false the
// resource is destroyed and not returned to the idle set, and a
// replacement is not eagerly created (the next Maintain call tops the
// pool back up to MinSize instead).
func (g *Guard[I]) Release(healthy bool) {
	if g.released {
		return
	}
	g.released = true
	g.pool.release(g.entryRef, healthy)
}

// Acquire checks out a resource, creating one if below MaxSize and none
// is idle, or blocking (subject to ctx/AcquireTimeout) until one frees up.
func (p *Pool[I]) Acquire(ctx context.Context) (*Guard[I], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &Error{Kind: PoolClosed, Message: "pool is shut down"}
	}
	p.mu.Unlock()

	acquireCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.AcquireTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	waitStart := time.Now()
	if err := p.sem.acquire(acquireCtx); err != nil {
		if p.metrics != nil {
			p.metrics.IncExhausted()
		}
		return nil, &Error{Kind: PoolExhausted, Message: fmt.Sprintf("acquire timed out: %v", err)}
	}
	if p.metrics != nil {
		p.metrics.ObserveAcquireWaitSeconds(time.Since(waitStart).Seconds())
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.release()
		return nil, &Error{Kind: PoolClosed, Message: "pool is shut down"}
	}

	if e := p.popIdle(); e != nil {
		e.lastUsed = time.Now()
		e.useCount++
		p.mu.Unlock()
		p.reportGauges()
		return &Guard[I]{pool: p, entryRef: e}, nil
	}
	p.mu.Unlock()

	inst, err := p.cfg.Factory(ctx)
	if err != nil {
		p.sem.release()
		return nil, &Error{Kind: CreateFailed, Message: err.Error()}
	}

	p.mu.Lock()
	p.total++
	p.mu.Unlock()
	p.reportGauges()

	now := time.Now()
	return &Guard[I]{pool: p, entryRef: &entry[I]{instance: inst, createdAt: now, lastUsed: now, useCount: 1}}, nil
}

// popIdle removes and returns one idle entry per the configured
// Strategy, or nil if none is idle. Caller must hold p.mu.
func (p *Pool[I]) popIdle() *entry[I] {
	if p.idle.Len() == 0 {
		return nil
	}
	switch p.cfg.Strategy {
	case LIFO:
		el := p.idle.Back()
		p.idle.Remove(el)
		return el.Value.(*entry[I])
	case LRU:
		// Oldest lastUsed first.
		var best *list.Element
		for el := p.idle.Front(); el != nil; el = el.Next() {
			if best == nil || el.Value.(*entry[I]).lastUsed.Before(best.Value.(*entry[I]).lastUsed) {
				best = el
			}
		}
		p.idle.Remove(best)
		return best.Value.(*entry[I])
	case WeightedRoundRobin, Adaptive:
		return p.popWeighted()
	default: // FIFO
		el := p.idle.Front()
		p.idle.Remove(el)
		return el.Value.(*entry[I])
	}
}

// popWeighted prefers healthier resources (per the optional Healthy
// interface) while still rotating through the idle set so a single
// high-scoring resource doesn't monopolize traffic.
func (p *Pool[I]) popWeighted() *entry[I] {
	var best *list.Element
	bestScore := -1.0
	i := 0
	for el := p.idle.Front(); el != nil; el = el.Next() {
		score := healthScore(el.Value.(*entry[I]).instance)
		// Small rotation bonus keeps round-robin behavior among equals.
		if i == p.rrCursor%max(1, p.idle.Len()) {
			score += 0.001
		}
		if score > bestScore {
			bestScore = score
			best = el
		}
		i++
	}
	p.rrCursor++
	p.idle.Remove(best)
	return best.Value.(*entry[I])
}

func healthScore(v any) float64 {
	if h, ok := v.(Healthy); ok {
		return h.Health().Score
	}
	return 1.0
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// release returns e to the idle set, or — when the pool is closed or the
// caller reports it unhealthy — destroys it and frees its pool slot. The
// semaphore tracks checked-out instances, not total instances: a permit
// is acquired on every Acquire (whether it creates a new instance or
// reuses an idle one) and given back here as soon as the instance is no
// longer checked out, whether it's going back to idle (still a live
// instance, just not in use) or being destroyed (no longer live at all).
func (p *Pool[I]) release(e *entry[I], healthy bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if p.cfg.Destroy != nil {
			p.cfg.Destroy(e.instance)
		}
		p.sem.release()
		return
	}
	if !healthy {
		p.total--
		p.mu.Unlock()
		if p.cfg.Destroy != nil {
			p.cfg.Destroy(e.instance)
		}
		p.sem.release()
		p.reportGauges()
		return
	}
	e.lastUsed = time.Now()
	p.idle.PushBack(e)
	p.sem.release()
	p.mu.Unlock()
	p.reportGauges()
}

// Stats reports a point-in-time snapshot of pool occupancy.
type Stats struct {
	Total     int
	Idle      int
	CheckedOut int
}

func (p *Pool[I]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := p.idle.Len()
	return Stats{Total: p.total, Idle: idle, CheckedOut: p.total - idle}
}

// Maintain evicts idle resources that have exceeded IdleTimeout and tops
// the pool back up to MinSize. Intended to be called periodically by a
// caller-owned ticker; the pool itself starts no background goroutines.
func (p *Pool[I]) Maintain(ctx context.Context) error {
	if p.cfg.IdleTimeout <= 0 {
		return p.scaleUp(ctx)
	}

	var expired []*entry[I]
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	cutoff := time.Now().Add(-p.cfg.IdleTimeout)
	keep := list.New()
	for el := p.idle.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[I])
		if e.lastUsed.Before(cutoff) && p.total > p.cfg.MinSize {
			expired = append(expired, e)
			p.total--
		} else {
			keep.PushBack(e)
		}
	}
	p.idle = keep
	p.mu.Unlock()

	if p.cfg.Destroy != nil {
		for _, e := range expired {
			p.cfg.Destroy(e.instance)
		}
	}
	p.reportGauges()
	return p.scaleUp(ctx)
}

func (p *Pool[I]) scaleUp(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.closed || p.total >= p.cfg.MinSize {
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		if !p.sem.tryAcquire() {
			return nil
		}
		inst, err := p.cfg.Factory(ctx)
		if err != nil {
			p.sem.release()
			return &Error{Kind: CreateFailed, Message: err.Error()}
		}
		now := time.Now()
		p.mu.Lock()
		p.total++
		p.idle.PushBack(&entry[I]{instance: inst, createdAt: now, lastUsed: now})
		p.mu.Unlock()
		p.sem.release()
	}
}

// Shutdown closes the pool. Safe to call concurrently with in-flight
// Guard.Release calls: once closed is set, any subsequent Release
// destroys its resource instead of returning it to the idle set.
func (p *Pool[I]) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = list.New()
	p.mu.Unlock()

	if p.cfg.Destroy != nil {
		for el := idle.Front(); el != nil; el = el.Next() {
			p.cfg.Destroy(el.Value.(*entry[I]).instance)
		}
	}
	p.reportGauges()
}

func (p *Pool[I]) reportGauges() {
	if p.metrics == nil {
		return
	}
	s := p.Stats()
	p.metrics.SetTotal(float64(s.Total))
	p.metrics.SetIdle(float64(s.Idle))
}
