package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lorabridge/bridge-core/internal/infrastructure/database"
)

// Store provides namespaced key-value access over the kv_store table.
//
// Each Store is bound to a single namespace so callers cannot collide with
// each other's keys. The device package keeps its table snapshot under one
// namespace; the settings package keeps runtime settings under another.
//
// Thread Safety:
//   - All methods are safe for concurrent use (serialised by SQLite).
type Store struct {
	db        *database.DB
	namespace string
}

// New creates a Store bound to the given namespace.
//
// Parameters:
//   - db: Open database connection (migrations must have been applied)
//   - namespace: Namespace prefix for all keys, e.g. "device" or "settings"
//
// Returns:
//   - *Store: Store ready for use
//   - error: If db is nil or namespace is empty
func New(db *database.DB, namespace string) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	return &Store{db: db, namespace: namespace}, nil
}

// Namespace returns the namespace this store is bound to.
func (s *Store) Namespace() string {
	return s.namespace
}

// Get retrieves the value for a key.
//
// Returns:
//   - string: The stored value
//   - error: ErrKeyNotFound if the key does not exist
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv_store WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("getting key %s: %w", key, err)
	}
	return value, nil
}

// GetDefault retrieves the value for a key, returning fallback if absent.
func (s *Store) GetDefault(ctx context.Context, key, fallback string) (string, error) {
	value, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Put stores a value under a key, replacing any existing value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.namespace, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("putting key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM kv_store WHERE namespace = ? AND key = ?",
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("deleting key %s: %w", key, err)
	}
	return nil
}

// All returns every key-value pair in the namespace.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM kv_store WHERE namespace = ?",
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("listing namespace %s: %w", s.namespace, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning kv row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating kv rows: %w", err)
	}
	return result, nil
}

// Replace atomically clears the namespace and writes the given pairs.
//
// The device table save strategy depends on this: a save wipes every
// persisted device key and rewrites the full snapshot, so stale keys from
// removed devices cannot survive. The clear and the writes happen in one
// transaction - a failed save leaves the previous snapshot intact.
func (s *Store) Replace(ctx context.Context, pairs map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM kv_store WHERE namespace = ?",
		s.namespace,
	); err != nil {
		return fmt.Errorf("clearing namespace %s: %w", s.namespace, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for key, value := range pairs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO kv_store (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)",
			s.namespace, key, value, now,
		); err != nil {
			return fmt.Errorf("writing key %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing namespace replace: %w", err)
	}
	return nil
}

// Clear removes every key in the namespace.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM kv_store WHERE namespace = ?",
		s.namespace,
	)
	if err != nil {
		return fmt.Errorf("clearing namespace %s: %w", s.namespace, err)
	}
	return nil
}
