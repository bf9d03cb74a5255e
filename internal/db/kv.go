package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hpungsan/pocket/internal/kv"
)

// KV is the SQLite-backed kv.KV. Batches run in a single transaction.
type KV struct {
	db *sql.DB
}

var (
	_ kv.KV      = (*KV)(nil)
	_ kv.Batcher = (*KV)(nil)
)

// NewKV wraps an initialized database (see Init).
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Open initializes baseDir/pocket.db and returns it as a KV.
func Open(baseDir string) (*KV, error) {
	database, err := Init(baseDir)
	if err != nil {
		return nil, err
	}
	return NewKV(database), nil
}

// DB exposes the underlying handle for pool tuning.
func (s *KV) DB() *sql.DB { return s.db }

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	return upsert(ctx, s.db, key, value)
}

func (s *KV) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := remove(ctx, s.db, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlite keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite keys: %w", err)
	}
	return keys, nil
}

// Apply runs ops in one transaction; either all land or none do.
func (s *KV) Apply(ctx context.Context, ops []kv.Op) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, op := range ops {
		switch op.Kind {
		case kv.OpSet:
			err = upsert(ctx, tx, op.Key, op.Value)
		case kv.OpDelete:
			err = remove(ctx, tx, op.Key)
		default:
			err = fmt.Errorf("unknown op kind %d", op.Kind)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func (s *KV) Close() error {
	return s.db.Close()
}

func upsert(ctx context.Context, db execer, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, key, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func remove(ctx context.Context, db execer, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}
