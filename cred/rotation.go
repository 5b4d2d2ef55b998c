package cred

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionState is the closed set of states a RotationTransaction
// moves through. Only Begin -> Prepare -> Commit, or Begin -> Prepare ->
// PrepareFailed -> Rollback, are reachable.
type TransactionState string

const (
	TxBegin         TransactionState = "Begin"
	TxPrepared      TransactionState = "Prepared"
	TxPrepareFailed TransactionState = "PrepareFailed"
	TxCommitted     TransactionState = "Committed"
	TxRolledBack    TransactionState = "Rollback"
)

// TransactionLogEntry records one state transition, so a failed rotation
// leaves an auditable trail even though it never touched live storage.
type TransactionLogEntry struct {
	State TransactionState
	At    time.Time
	Note  string
}

// RotationTransaction implements atomic credential rotation as a
// two-phase commit: Prepare stages the new encrypted material without
// making it visible, Commit swaps it in, and any Prepare failure drives
// an automatic Rollback that leaves the original credential untouched.
type RotationTransaction struct {
	manager *Manager
	id      ID
	txID    string
	rctx    Context

	state        TransactionState
	log          []TransactionLogEntry
	staged       EncryptedData
	stagedMeta   Metadata
	original     EncryptedData
	originalMeta Metadata
}

// TransactionID uniquely identifies this rotation attempt across the
// audit trail, independent of the credential ID it rotates (a single
// credential can be the subject of many rotation transactions over its
// lifetime).
func (tx *RotationTransaction) TransactionID() string { return tx.txID }

func (m *Manager) BeginRotation(ctx context.Context, id ID, rctx Context) (*RotationTransaction, error) {
	data, meta, err := m.RetrieveScoped(ctx, id, rctx)
	if err != nil {
		return nil, err
	}
	tx := &RotationTransaction{
		manager:      m,
		id:           id,
		txID:         uuid.New().String(),
		rctx:         rctx,
		state:        TxBegin,
		original:     data,
		originalMeta: meta,
	}
	tx.record(TxBegin, "rotation started")
	return tx, nil
}

func (tx *RotationTransaction) record(state TransactionState, note string) {
	tx.state = state
	tx.log = append(tx.log, TransactionLogEntry{State: state, At: time.Now(), Note: note})
}

// Log returns the transaction's audit trail so far.
func (tx *RotationTransaction) Log() []TransactionLogEntry {
	out := make([]TransactionLogEntry, len(tx.log))
	copy(out, tx.log)
	return out
}

// Prepare validates and stages newData without making it visible to any
// reader. A validation failure transitions to PrepareFailed and the
// caller must call Rollback (or the transaction is simply abandoned,
// since nothing has been written to storage yet).
func (tx *RotationTransaction) Prepare(ctx context.Context, newData EncryptedData, newMeta Metadata) error {
	if tx.state != TxBegin {
		return &Error{Kind: RotationFailed, ID: tx.id, Message: fmt.Sprintf("cannot prepare from state %s", tx.state)}
	}
	if len(newData) == 0 {
		tx.record(TxPrepareFailed, "new credential material is empty")
		return &Error{Kind: RotationFailed, ID: tx.id, Message: "new credential material must not be empty"}
	}

	newMeta.ID = tx.id
	newMeta.Owner = tx.originalMeta.Owner
	newMeta.Scope = tx.originalMeta.Scope
	newMeta.Version = tx.originalMeta.Version + 1
	if newMeta.CreatedAt.IsZero() {
		newMeta.CreatedAt = time.Now()
	}

	tx.staged = newData
	tx.stagedMeta = newMeta
	tx.record(TxPrepared, "new material staged")
	return nil
}

// Commit makes the staged material live. Only reachable from Prepared.
func (tx *RotationTransaction) Commit(ctx context.Context) error {
	if tx.state != TxPrepared {
		return &Error{Kind: RotationFailed, ID: tx.id, Message: fmt.Sprintf("cannot commit from state %s", tx.state)}
	}
	if err := tx.manager.storage.Put(ctx, tx.id, tx.staged, tx.stagedMeta); err != nil {
		tx.record(TxPrepareFailed, "storage write failed: "+err.Error())
		return &Error{Kind: StorageError, ID: tx.id, Message: err.Error()}
	}
	if tx.manager.cache != nil {
		tx.manager.cache.put(tx.id, tx.staged, tx.stagedMeta)
	}
	tx.record(TxCommitted, "rotation committed")
	return nil
}

// Rollback discards any staged material. Since Prepare never writes to
// storage, rollback is always a pure in-memory no-op against the
// original credential — the original is never at risk.
func (tx *RotationTransaction) Rollback(ctx context.Context) error {
	tx.staged = nil
	tx.stagedMeta = Metadata{}
	tx.record(TxRolledBack, "rotation rolled back, original credential untouched")
	return nil
}

// RotateAtomic runs the full Prepare/Commit sequence in one call,
// automatically rolling back on any Prepare failure.
func (m *Manager) RotateAtomic(ctx context.Context, id ID, rctx Context, newData EncryptedData, newMeta Metadata) (*RotationTransaction, error) {
	tx, err := m.BeginRotation(ctx, id, rctx)
	if err != nil {
		return nil, err
	}
	if err := tx.Prepare(ctx, newData, newMeta); err != nil {
		_ = tx.Rollback(ctx)
		return tx, err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return tx, err
	}
	return tx, nil
}

// RotatePeriodic rotates id if its RotationPolicy.Period has elapsed
// since CreatedAt.
func (m *Manager) RotatePeriodic(ctx context.Context, id ID, rctx Context, newData EncryptedData) (*RotationTransaction, error) {
	_, meta, err := m.RetrieveScoped(ctx, id, rctx)
	if err != nil {
		return nil, err
	}
	if meta.RotationPolicy.Period <= 0 {
		return nil, &Error{Kind: InvalidArgument, ID: id, Message: "credential has no periodic rotation policy"}
	}
	if time.Since(meta.CreatedAt) < meta.RotationPolicy.Period {
		return nil, nil // not due yet
	}
	return m.RotateAtomic(ctx, id, rctx, newData, meta)
}

// RotateBeforeExpiry rotates id once it is within RotationPolicy.GraceBefore
// of its ExpiresAt.
func (m *Manager) RotateBeforeExpiry(ctx context.Context, id ID, rctx Context, newData EncryptedData) (*RotationTransaction, error) {
	_, meta, err := m.RetrieveScoped(ctx, id, rctx)
	if err != nil {
		return nil, err
	}
	if meta.ExpiresAt.IsZero() {
		return nil, &Error{Kind: InvalidArgument, ID: id, Message: "credential has no expiry to rotate ahead of"}
	}
	if time.Until(meta.ExpiresAt) > meta.RotationPolicy.GraceBefore {
		return nil, nil // not due yet
	}
	return m.RotateAtomic(ctx, id, rctx, newData, meta)
}

// RotateScheduled rotates id at a caller-supplied time, regardless of
// policy — used for maintenance-window-driven rotation.
func (m *Manager) RotateScheduled(ctx context.Context, id ID, rctx Context, newData EncryptedData, at time.Time) (*RotationTransaction, error) {
	if time.Now().Before(at) {
		return nil, nil // scheduled time not yet reached
	}
	_, meta, err := m.RetrieveScoped(ctx, id, rctx)
	if err != nil {
		return nil, err
	}
	return m.RotateAtomic(ctx, id, rctx, newData, meta)
}

// TriggerManualRotation rotates id immediately, ignoring policy — the
// operator-initiated escape hatch.
func (m *Manager) TriggerManualRotation(ctx context.Context, id ID, rctx Context, newData EncryptedData) (*RotationTransaction, error) {
	_, meta, err := m.RetrieveScoped(ctx, id, rctx)
	if err != nil {
		return nil, err
	}
	return m.RotateAtomic(ctx, id, rctx, newData, meta)
}

// RotateBlueGreen stages newData under a shadow ID so both old and new
// credentials are independently retrievable during cutover, then commits
// the swap onto the original ID once the caller confirms shadow is good.
func (m *Manager) RotateBlueGreen(ctx context.Context, id ID, rctx Context, newData EncryptedData) (shadowID ID, err error) {
	_, meta, err := m.RetrieveScoped(ctx, id, rctx)
	if err != nil {
		return "", err
	}
	shadowID = ID(fmt.Sprintf("%s~shadow", id))
	shadowMeta := meta
	shadowMeta.Version = meta.Version + 1
	if err := m.Store(ctx, shadowID, newData, shadowMeta, rctx); err != nil {
		return "", err
	}
	return shadowID, nil
}

// PromoteBlueGreen commits a shadow credential created by RotateBlueGreen
// onto its original ID and removes the shadow entry.
func (m *Manager) PromoteBlueGreen(ctx context.Context, id, shadowID ID, rctx Context) (*RotationTransaction, error) {
	data, meta, err := m.RetrieveScoped(ctx, shadowID, rctx)
	if err != nil {
		return nil, err
	}
	tx, err := m.RotateAtomic(ctx, id, rctx, data, meta)
	if err != nil {
		return tx, err
	}
	_ = m.Delete(ctx, shadowID)
	return tx, nil
}

// RotateWithGracePeriod commits the new credential but retains the
// original under a "~previous" ID for RotationPolicy.GracePeriod, so
// callers mid-flight with the old secret are not abruptly cut off.
func (m *Manager) RotateWithGracePeriod(ctx context.Context, id ID, rctx Context, newData EncryptedData) (*RotationTransaction, error) {
	tx, err := m.BeginRotation(ctx, id, rctx)
	if err != nil {
		return nil, err
	}
	previousID := ID(fmt.Sprintf("%s~previous", id))
	previousMeta := tx.originalMeta
	previousMeta.ExpiresAt = time.Now().Add(previousMeta.RotationPolicy.GracePeriod)

	if err := tx.Prepare(ctx, newData, tx.originalMeta); err != nil {
		_ = tx.Rollback(ctx)
		return tx, err
	}
	if err := m.Store(ctx, previousID, tx.original, previousMeta, rctx); err != nil {
		_ = tx.Rollback(ctx)
		return tx, &Error{Kind: RotationFailed, ID: id, Message: "failed to archive previous credential: " + err.Error()}
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return tx, err
	}
	return tx, nil
}
