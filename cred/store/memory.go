// Package store provides StorageProvider implementations for the
// credential manager: in-memory (testing/dev), MySQL, and SQLite.
package store

import (
	"context"
	"sync"

	"github.com/nebula-run/flow/cred"
)

// MemStore is an in-memory StorageProvider. Thread-safe; data is lost on
// process exit. Intended for testing and single-process deployments.
type MemStore struct {
	mu    sync.RWMutex
	data  map[cred.ID]cred.EncryptedData
	metas map[cred.ID]cred.Metadata
}

func NewMemStore() *MemStore {
	return &MemStore{
		data:  make(map[cred.ID]cred.EncryptedData),
		metas: make(map[cred.ID]cred.Metadata),
	}
}

func (m *MemStore) Put(_ context.Context, id cred.ID, data cred.EncryptedData, meta cred.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(cred.EncryptedData, len(data))
	copy(cp, data)
	m.data[id] = cp
	m.metas[id] = meta
	return nil
}

func (m *MemStore) Get(_ context.Context, id cred.ID) (cred.EncryptedData, cred.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, cred.Metadata{}, errNotFound(id)
	}
	cp := make(cred.EncryptedData, len(data))
	copy(cp, data)
	return cp, m.metas[id], nil
}

func (m *MemStore) Delete(_ context.Context, id cred.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	delete(m.metas, id)
	return nil
}

func (m *MemStore) List(_ context.Context, scope cred.Scope) ([]cred.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []cred.Metadata
	for _, meta := range m.metas {
		if scope == "" || meta.Scope == scope {
			out = append(out, meta)
		}
	}
	return out, nil
}

type notFoundError struct{ id cred.ID }

func (e *notFoundError) Error() string { return "credential not found: " + string(e.id) }

func errNotFound(id cred.ID) error { return &notFoundError{id: id} }
