package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nebula-run/flow/cred"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed StorageProvider, for production
// deployments that need credential persistence across process restarts.
//
// Schema:
//   - credentials: encrypted material + metadata, keyed by credential ID.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens dsn and ensures the credentials table exists.
//
// Security Warning: never hardcode credentials in source; read the DSN
// from the environment.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id VARCHAR(255) PRIMARY KEY,
	data LONGBLOB NOT NULL,
	owner VARCHAR(255) NOT NULL,
	scope VARCHAR(255) NOT NULL,
	created_at DATETIME NOT NULL,
	not_before DATETIME NULL,
	expires_at DATETIME NULL,
	rotation_policy JSON NULL,
	version INT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create credentials table: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) Put(ctx context.Context, id cred.ID, data cred.EncryptedData, meta cred.Metadata) error {
	policy, err := json.Marshal(meta.RotationPolicy)
	if err != nil {
		return fmt.Errorf("marshal rotation policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO credentials (id, data, owner, scope, created_at, not_before, expires_at, rotation_policy, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	data = VALUES(data), owner = VALUES(owner), scope = VALUES(scope),
	not_before = VALUES(not_before), expires_at = VALUES(expires_at),
	rotation_policy = VALUES(rotation_policy), version = VALUES(version)`,
		string(id), []byte(data), meta.Owner, string(meta.Scope), meta.CreatedAt,
		nullableTime(meta.NotBefore), nullableTime(meta.ExpiresAt), policy, meta.Version)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *MySQLStore) Get(ctx context.Context, id cred.ID) (cred.EncryptedData, cred.Metadata, error) {
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
		policyJSON []byte
		version    int
	)
	if err := row.Scan(&data, &owner, &scope, &createdAt, &notBefore, &expiresAt, &policyJSON, &version); err != nil {
		if err == sql.ErrNoRows {
			return nil, cred.Metadata{}, errNotFound(id)
		}
		return nil, cred.Metadata{}, fmt.Errorf("scan credential: %w", err)
	}

	var policy cred.RotationPolicy
	if len(policyJSON) > 0 {
		_ = json.Unmarshal(policyJSON, &policy)
	}

	meta := cred.Metadata{
		ID: id, Owner: owner, Scope: cred.Scope(scope), CreatedAt: createdAt,
		NotBefore: notBefore.Time, ExpiresAt: expiresAt.Time, RotationPolicy: policy, Version: version,
	}
	return cred.EncryptedData(data), meta, nil
}

func (s *MySQLStore) Delete(ctx context.Context, id cred.ID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *MySQLStore) List(ctx context.Context, scope cred.Scope) ([]cred.Metadata, error) {
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
			policyJSON []byte
			version    int
		)
		if err := rows.Scan(&id, &owner, &scopeVal, &createdAt, &notBefore, &expiresAt, &policyJSON, &version); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		var policy cred.RotationPolicy
		if len(policyJSON) > 0 {
			_ = json.Unmarshal(policyJSON, &policy)
		}
		out = append(out, cred.Metadata{
			ID: cred.ID(id), Owner: owner, Scope: cred.Scope(scopeVal), CreatedAt: createdAt,
			NotBefore: notBefore.Time, ExpiresAt: expiresAt.Time, RotationPolicy: policy, Version: version,
		})
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
