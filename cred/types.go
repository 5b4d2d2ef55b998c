// Package cred implements a per-tenant credential manager: encrypted
// storage behind a pluggable StorageProvider, a cache-aside layer,
// hierarchical scope isolation, and two-phase-commit credential
// rotation.
package cred

import "time"

// ID uniquely identifies a stored credential.
type ID string

// Scope is a '/'-delimited hierarchy path (e.g. "org:acme/team:eng").
// A context scope may access a credential scope if the context scope is
// a prefix of (or equal to) the credential's scope — reflexive and
// transitive, so a parent scope reaches every descendant.
type Scope string

// Metadata describes a stored credential without exposing its secret
// material.
type Metadata struct {
	ID            ID
	Owner         string
	Scope         Scope
	CreatedAt     time.Time
	NotBefore     time.Time
	ExpiresAt     time.Time
	RotationPolicy RotationPolicy
	Version       int
}

// RotationPolicy configures how and when a credential is eligible for
// automatic rotation.
type RotationPolicy struct {
	Period        time.Duration // for periodic rotation
	GraceBefore   time.Duration // rotate this long before ExpiresAt
	GracePeriod   time.Duration // overlap window old+new both valid
}

// EncryptedData is opaque, already-encrypted credential material. The
// manager never sees plaintext secrets.
type EncryptedData []byte

// Context carries the caller's identity and scope for every operation,
// enforcing per-tenant isolation.
type Context struct {
	Owner string
	Scope Scope
}
