package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nebula-run/flow/cred"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed StorageProvider, for local development
// and single-process deployments that want on-disk persistence with
// zero external setup. Uses WAL mode for concurrent reads.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	owner TEXT NOT NULL,
	scope TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	not_before DATETIME,
	expires_at DATETIME,
	rotation_policy TEXT,
	version INTEGER NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create credentials table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Put(ctx context.Context, id cred.ID, data cred.EncryptedData, meta cred.Metadata) error {
	policy, err := json.Marshal(meta.RotationPolicy)
	if err != nil {
		return fmt.Errorf("marshal rotation policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO credentials (id, data, owner, scope, created_at, not_before, expires_at, rotation_policy, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	data = excluded.data, owner = excluded.owner, scope = excluded.scope,
	not_before = excluded.not_before, expires_at = excluded.expires_at,
	rotation_policy = excluded.rotation_policy, version = excluded.version`,
		string(id), []byte(data), meta.Owner, string(meta.Scope), meta.CreatedAt,
		nullableTime(meta.NotBefore), nullableTime(meta.ExpiresAt), string(policy), meta.Version)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id cred.ID) (cred.EncryptedData, cred.Metadata, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT data, owner, scope, created_at, not_before, expires_at, rotation_policy, version
FROM credentials WHERE id = ?`, string(id))

	var (
		data       []byte
		owner      string
		scope      string
		createdAt  time.Time
		notBefore  sql.NullTime
		expiresAt  sql.NullTime
		policyJSON sql.NullString
		version    int
	)
	if err := row.Scan(&data, &owner, &scope, &createdAt, &notBefore, &expiresAt, &policyJSON, &version); err != nil {
		if err == sql.ErrNoRows {
			return nil, cred.Metadata{}, errNotFound(id)
		}
		return nil, cred.Metadata{}, fmt.Errorf("scan credential: %w", err)
	}

	var policy cred.RotationPolicy
	if policyJSON.Valid && policyJSON.String != "" {
		_ = json.Unmarshal([]byte(policyJSON.String), &policy)
	}

	meta := cred.Metadata{
		ID: id, Owner: owner, Scope: cred.Scope(scope), CreatedAt: createdAt,
		NotBefore: notBefore.Time, ExpiresAt: expiresAt.Time, RotationPolicy: policy, Version: version,
	}
	return cred.EncryptedData(data), meta, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id cred.ID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, scope cred.Scope) ([]cred.Metadata, error) {
	query := `SELECT id, owner, scope, created_at, not_before, expires_at, rotation_policy, version FROM credentials`
	args := []any{}
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, string(scope))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []cred.Metadata
	for rows.Next() {
		var (
			id         string
			owner      string
			scopeVal   string
			createdAt  time.Time
			notBefore  sql.NullTime
			expiresAt  sql.NullTime
			policyJSON sql.NullString
			version    int
		)
		if err := rows.Scan(&id, &owner, &scopeVal, &createdAt, &notBefore, &expiresAt, &policyJSON, &version); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		var policy cred.RotationPolicy
		if policyJSON.Valid && policyJSON.String != "" {
			_ = json.Unmarshal([]byte(policyJSON.String), &policy)
		}
		out = append(out, cred.Metadata{
			ID: cred.ID(id), Owner: owner, Scope: cred.Scope(scopeVal), CreatedAt: createdAt,
			NotBefore: notBefore.Time, ExpiresAt: expiresAt.Time, RotationPolicy: policy, Version: version,
		})
	}
	return out, rows.Err()
}
