package cred

import (
	"context"
	"sync"
	"time"
)

// Store persists a new credential, stamping its scope from ctx for
// multi-tenant isolation.
func (m *Manager) Store(ctx context.Context, id ID, data EncryptedData, meta Metadata, rctx Context) error {
	meta.ID = id
	meta.Owner = rctx.Owner
	meta.Scope = rctx.Scope
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	meta.Version = 1

	if err := m.storage.Put(ctx, id, data, meta); err != nil {
		return &Error{Kind: StorageError, ID: id, Message: err.Error()}
	}
	if m.cache != nil {
		m.cache.put(id, data, meta)
	}
	m.observe("store", id)
	return nil
}

// Retrieve fetches a credential without any scope enforcement — callers
// that need multi-tenant isolation should use RetrieveScoped instead.
func (m *Manager) Retrieve(ctx context.Context, id ID) (EncryptedData, Metadata, error) {
	if m.cache != nil {
		if data, meta, ok := m.cache.get(id); ok {
			m.observeHit("retrieve")
			return data, meta, nil
		}
	}
	data, meta, err := m.storage.Get(ctx, id)
	if err != nil {
		return nil, Metadata{}, &Error{Kind: NotFound, ID: id, Message: err.Error()}
	}
	if m.cache != nil {
		m.cache.put(id, data, meta)
	}
	m.observeMiss("retrieve")
	return data, meta, nil
}

// RetrieveScoped enforces hierarchical scope isolation: the caller's
// scope must be equal to, or a hierarchical ancestor of, the credential's
// scope. A context with no scope is rejected outright — unscoped access
// is never granted through this path.
func (m *Manager) RetrieveScoped(ctx context.Context, id ID, rctx Context) (EncryptedData, Metadata, error) {
	if rctx.Scope == "" {
		return nil, Metadata{}, &Error{Kind: ScopeRequired, ID: id, Message: "context scope is required for scoped retrieval"}
	}

	data, meta, err := m.Retrieve(ctx, id)
	if err != nil {
		return nil, Metadata{}, err
	}
	if meta.Scope == "" {
		return nil, Metadata{}, &Error{Kind: ScopeDenied, ID: id, Message: "credential has no scope and is not accessible via scoped retrieval"}
	}
	if !rctx.Scope.allows(meta.Scope) {
		return nil, Metadata{}, &Error{Kind: ScopeDenied, ID: id, Message: "context scope does not cover credential scope"}
	}
	return data, meta, nil
}

// Delete removes a credential from storage and cache.
func (m *Manager) Delete(ctx context.Context, id ID) error {
	if err := m.storage.Delete(ctx, id); err != nil {
		return &Error{Kind: StorageError, ID: id, Message: err.Error()}
	}
	if m.cache != nil {
		m.cache.invalidate(id)
	}
	m.observe("delete", id)
	return nil
}

// List returns metadata for every credential whose scope is reachable
// from the given scope (equal to or a descendant of it).
func (m *Manager) List(ctx context.Context, scope Scope) ([]Metadata, error) {
	all, err := m.storage.List(ctx, "")
	if err != nil {
		return nil, &Error{Kind: StorageError, Message: err.Error()}
	}
	if scope == "" {
		return all, nil
	}
	var out []Metadata
	for _, meta := range all {
		if scope.allows(meta.Scope) {
			out = append(out, meta)
		}
	}
	return out, nil
}

// BatchGetResult pairs a requested ID with its resolved value or error.
type BatchGetResult struct {
	ID   ID
	Data EncryptedData
	Meta Metadata
	Err  error
}

// BatchRetrieve fetches many credentials concurrently, bounded by the
// manager's configured batch concurrency, and returns one result per
// input ID (never short-circuiting on the first failure).
func (m *Manager) BatchRetrieve(ctx context.Context, ids []ID, rctx Context) []BatchGetResult {
	results := make([]BatchGetResult, len(ids))
	sem := make(chan struct{}, m.batchConcurrency)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id ID) {
			defer wg.Done()
			defer func() { <-sem }()
			data, meta, err := m.RetrieveScoped(ctx, id, rctx)
			results[i] = BatchGetResult{ID: id, Data: data, Meta: meta, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

func (m *Manager) observe(op string, id ID) {
	if m.metrics != nil {
		m.metrics.IncOp(op)
	}
}

func (m *Manager) observeHit(op string) {
	if m.metrics != nil {
		m.metrics.IncCacheHit(op)
	}
}

func (m *Manager) observeMiss(op string) {
	if m.metrics != nil {
		m.metrics.IncCacheMiss(op)
	}
}
