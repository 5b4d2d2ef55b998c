package cred

import "context"

// StorageProvider persists encrypted credential material and its
// metadata. Implementations live under cred/store (memory, MySQL,
// SQLite) and never see plaintext secrets — encryption happens above
// this layer.
type StorageProvider interface {
	Put(ctx context.Context, id ID, data EncryptedData, meta Metadata) error
	Get(ctx context.Context, id ID) (EncryptedData, Metadata, error)
	Delete(ctx context.Context, id ID) error
	List(ctx context.Context, scope Scope) ([]Metadata, error)
}
