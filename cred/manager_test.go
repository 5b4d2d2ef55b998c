package cred

import (
	"context"
	"testing"
	"time"
)

type memStore struct {
	data  map[ID]EncryptedData
	metas map[ID]Metadata
}

func newMemStore() *memStore {
	return &memStore{data: map[ID]EncryptedData{}, metas: map[ID]Metadata{}}
}

func (m *memStore) Put(_ context.Context, id ID, data EncryptedData, meta Metadata) error {
	m.data[id] = data
	m.metas[id] = meta
	return nil
}

func (m *memStore) Get(_ context.Context, id ID) (EncryptedData, Metadata, error) {
	data, ok := m.data[id]
	if !ok {
		return nil, Metadata{}, &Error{Kind: NotFound, ID: id, Message: "not found"}
	}
	return data, m.metas[id], nil
}

func (m *memStore) Delete(_ context.Context, id ID) error {
	delete(m.data, id)
	delete(m.metas, id)
	return nil
}

func (m *memStore) List(_ context.Context, scope Scope) ([]Metadata, error) {
	var out []Metadata
	for _, meta := range m.metas {
		out = append(out, meta)
	}
	return out, nil
}

func newTestManager() *Manager {
	return NewManagerBuilder().WithStorage(newMemStore()).Build()
}

func TestStoreAndRetrieve(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	err := m.Store(ctx, "cred-1", EncryptedData("secret"), Metadata{}, Context{Owner: "alice", Scope: "org:acme"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	data, meta, err := m.Retrieve(ctx, "cred-1")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(data) != "secret" || meta.Owner != "alice" {
		t.Fatalf("unexpected retrieve result: %q %+v", data, meta)
	}
}

// TestScopeIsolation reproduces the seed scenario: a credential scoped to
// org:acme/team:eng is reachable from org:acme (ancestor) but not from an
// unrelated sibling scope org:acme/team:sales.
func TestScopeIsolation(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	storeCtx := Context{Owner: "svc", Scope: "org:acme/team:eng"}
	if err := m.Store(ctx, "svc-token", EncryptedData("secret"), Metadata{}, storeCtx); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Ancestor scope can read.
	_, _, err := m.RetrieveScoped(ctx, "svc-token", Context{Scope: "org:acme"})
	if err != nil {
		t.Fatalf("expected ancestor scope to access credential, got %v", err)
	}

	// Exact scope can read.
	_, _, err = m.RetrieveScoped(ctx, "svc-token", Context{Scope: "org:acme/team:eng"})
	if err != nil {
		t.Fatalf("expected exact scope to access credential, got %v", err)
	}

	// Sibling scope is denied.
	_, _, err = m.RetrieveScoped(ctx, "svc-token", Context{Scope: "org:acme/team:sales"})
	if err == nil {
		t.Fatal("expected sibling scope to be denied")
	}
	ce, ok := err.(*Error)
	if !ok || ce.Kind != ScopeDenied {
		t.Fatalf("expected ScopeDenied, got %v", err)
	}

	// Descendant scope of the credential's own scope cannot reach upward.
	_, _, err = m.RetrieveScoped(ctx, "svc-token", Context{Scope: "org:acme/team:eng/service:api"})
	if err == nil {
		t.Fatal("expected descendant-of-credential scope to be denied (only ancestors reach down, not the reverse)")
	}

	// Missing scope is rejected outright.
	_, _, err = m.RetrieveScoped(ctx, "svc-token", Context{})
	ce, ok = err.(*Error)
	if !ok || ce.Kind != ScopeRequired {
		t.Fatalf("expected ScopeRequired for empty context scope, got %v", err)
	}
}

func TestRotateAtomicSuccess(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	rctx := Context{Owner: "svc", Scope: "org:acme"}
	if err := m.Store(ctx, "rotating", EncryptedData("v1"), Metadata{}, rctx); err != nil {
		t.Fatalf("Store: %v", err)
	}

	tx, err := m.RotateAtomic(ctx, "rotating", rctx, EncryptedData("v2"), Metadata{})
	if err != nil {
		t.Fatalf("RotateAtomic: %v", err)
	}
	if tx.state != TxCommitted {
		t.Fatalf("expected committed state, got %s", tx.state)
	}

	data, meta, err := m.RetrieveScoped(ctx, "rotating", rctx)
	if err != nil {
		t.Fatalf("Retrieve after rotation: %v", err)
	}
	if string(data) != "v2" {
		t.Fatalf("expected rotated value v2, got %q", data)
	}
	if meta.Version != 2 {
		t.Fatalf("expected version bumped to 2, got %d", meta.Version)
	}
}

// TestRotateAtomicRollbackOnPrepareFailure reproduces the seed scenario:
// a Prepare failure (empty new credential material) drives an automatic
// Rollback, and the original credential is left completely untouched.
func TestRotateAtomicRollbackOnPrepareFailure(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	rctx := Context{Owner: "svc", Scope: "org:acme"}
	if err := m.Store(ctx, "rotating", EncryptedData("v1"), Metadata{}, rctx); err != nil {
		t.Fatalf("Store: %v", err)
	}

	tx, err := m.RotateAtomic(ctx, "rotating", rctx, EncryptedData(nil), Metadata{})
	if err == nil {
		t.Fatal("expected rotation with empty new material to fail")
	}
	if tx.state != TxRolledBack {
		t.Fatalf("expected rolled-back state, got %s", tx.state)
	}

	log := tx.Log()
	wantStates := []TransactionState{TxBegin, TxPrepareFailed, TxRolledBack}
	if len(log) != len(wantStates) {
		t.Fatalf("expected %d log entries, got %d: %+v", len(wantStates), len(log), log)
	}
	for i, entry := range log {
		if entry.State != wantStates[i] {
			t.Errorf("log[%d].State = %s, want %s", i, entry.State, wantStates[i])
		}
	}

	// Original credential must be unaffected.
	data, _, err := m.RetrieveScoped(ctx, "rotating", rctx)
	if err != nil {
		t.Fatalf("Retrieve after rollback: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("expected original value v1 preserved after rollback, got %q", data)
	}
}

func TestBatchRetrieveDoesNotShortCircuit(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	rctx := Context{Owner: "svc", Scope: "org:acme"}
	if err := m.Store(ctx, "a", EncryptedData("va"), Metadata{}, rctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Store(ctx, "b", EncryptedData("vb"), Metadata{}, rctx); err != nil {
		t.Fatal(err)
	}

	results := m.BatchRetrieve(ctx, []ID{"a", "missing", "b"}, rctx)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || string(results[0].Data) != "va" {
		t.Errorf("result[0] wrong: %+v", results[0])
	}
	if results[1].Err == nil {
		t.Errorf("result[1] should have errored for missing credential")
	}
	if results[2].Err != nil || string(results[2].Data) != "vb" {
		t.Errorf("result[2] wrong: %+v", results[2])
	}
}

func TestCacheAsideHitAndEviction(t *testing.T) {
	store := newMemStore()
	m := NewManagerBuilder().WithStorage(store).WithCache(10, 50*time.Millisecond, 50*time.Millisecond).Build()
	ctx := context.Background()
	if err := m.Store(ctx, "cached", EncryptedData("v1"), Metadata{}, Context{Owner: "svc"}); err != nil {
		t.Fatal(err)
	}

	if _, _, ok := m.cache.get("cached"); !ok {
		t.Fatal("expected store to populate cache")
	}

	time.Sleep(80 * time.Millisecond)
	if _, _, ok := m.cache.get("cached"); ok {
		t.Fatal("expected cache entry to expire after TTL")
	}

	// Still retrievable from the underlying store after cache eviction.
	data, _, err := m.Retrieve(ctx, "cached")
	if err != nil || string(data) != "v1" {
		t.Fatalf("expected fallback to storage after cache eviction, got %q, err=%v", data, err)
	}
}
