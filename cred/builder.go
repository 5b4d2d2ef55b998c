package cred

import "time"

// Manager is the central credential interface: CRUD, scope-enforced
// retrieval, batch operations, and rotation, backed by a StorageProvider
// and an optional cache-aside layer.
type Manager struct {
	storage          StorageProvider
	cache            *cache
	batchConcurrency int
	metrics          *Metrics
}

// ManagerBuilder collects configuration before a StorageProvider has
// been set. It has no Build method — only WithStorage is callable, which
// hands back a StorageManagerBuilder that does have one. This mirrors
// the typestate-builder discipline of the original Rust manager (which
// encodes the same constraint with PhantomData<No>/PhantomData<Yes>):
// here the Go compiler enforces it structurally, by simply not putting a
// Build method on the pre-storage type, rather than via a generic
// parameter (Go methods cannot be restricted to one generic
// instantiation of their receiver).
type ManagerBuilder struct {
	cacheMaxEntries  int
	cacheTTL         time.Duration
	cacheIdleTTL     time.Duration
	batchConcurrency int
	metrics          *Metrics
}

// NewManagerBuilder starts a builder with no storage configured yet.
func NewManagerBuilder() *ManagerBuilder {
	return &ManagerBuilder{
		cacheMaxEntries:  1000,
		cacheTTL:         5 * time.Minute,
		cacheIdleTTL:     2 * time.Minute,
		batchConcurrency: 8,
	}
}

func (b *ManagerBuilder) WithCache(maxEntries int, ttl, idleTTL time.Duration) *ManagerBuilder {
	b.cacheMaxEntries = maxEntries
	b.cacheTTL = ttl
	b.cacheIdleTTL = idleTTL
	return b
}

func (b *ManagerBuilder) WithoutCache() *ManagerBuilder {
	b.cacheMaxEntries = 0
	return b
}

func (b *ManagerBuilder) WithBatchConcurrency(n int) *ManagerBuilder {
	b.batchConcurrency = n
	return b
}

func (b *ManagerBuilder) WithMetrics(m *Metrics) *ManagerBuilder {
	b.metrics = m
	return b
}

// WithStorage sets the backing StorageProvider and transitions to a
// StorageManagerBuilder, the only type with a Build method.
func (b *ManagerBuilder) WithStorage(storage StorageProvider) *StorageManagerBuilder {
	return &StorageManagerBuilder{base: b, storage: storage}
}

// StorageManagerBuilder is a ManagerBuilder that has a StorageProvider
// and can therefore be built.
type StorageManagerBuilder struct {
	base    *ManagerBuilder
	storage StorageProvider
}

func (b *StorageManagerBuilder) WithCache(maxEntries int, ttl, idleTTL time.Duration) *StorageManagerBuilder {
	b.base.WithCache(maxEntries, ttl, idleTTL)
	return b
}

func (b *StorageManagerBuilder) WithoutCache() *StorageManagerBuilder {
	b.base.WithoutCache()
	return b
}

func (b *StorageManagerBuilder) WithBatchConcurrency(n int) *StorageManagerBuilder {
	b.base.WithBatchConcurrency(n)
	return b
}

func (b *StorageManagerBuilder) WithMetrics(m *Metrics) *StorageManagerBuilder {
	b.base.WithMetrics(m)
	return b
}

// Build constructs the Manager. Only reachable once WithStorage has
// been called, since that is the only way to obtain a
// StorageManagerBuilder.
func (b *StorageManagerBuilder) Build() *Manager {
	m := &Manager{
		storage:          b.storage,
		batchConcurrency: b.base.batchConcurrency,
		metrics:          b.base.metrics,
	}
	if b.base.cacheMaxEntries > 0 {
		m.cache = newCache(b.base.cacheMaxEntries, b.base.cacheTTL, b.base.cacheIdleTTL)
	}
	if m.batchConcurrency <= 0 {
		m.batchConcurrency = 8
	}
	return m
}
