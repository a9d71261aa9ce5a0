package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aegis/pkg/platform/sentinel"
)

// PostgresStore persists data keys in PostgreSQL. The schema carries a
// partial unique index on (alias) WHERE active, so the insert-if-absent
// below is atomic: the race on a brand-new alias resolves to a single
// winner and the loser reads the winner's row back.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetOrCreateActive(ctx context.Context, candidate Key) (Key, bool, error) {
	// DO UPDATE on the conflict target turns the statement into a read of
	// the existing active row, so one round trip covers both outcomes.
	query := `
		INSERT INTO encryption_keys (id, alias, wrapped_key, algorithm, active, created_at, rotated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NULL)
		ON CONFLICT (alias) WHERE active DO UPDATE SET alias = EXCLUDED.alias
		RETURNING id, alias, wrapped_key, algorithm, active, created_at, rotated_at
	`
	key, err := scanKey(s.db.QueryRowContext(ctx, query,
		candidate.ID,
		candidate.Alias,
		candidate.WrappedKey,
		candidate.Algorithm,
		candidate.CreatedAt,
	))
	if err != nil {
		return Key{}, false, fmt.Errorf("get or create active key: %w", err)
	}
	return key, key.ID == candidate.ID, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, keyID uuid.UUID) (Key, error) {
	query := `
		SELECT id, alias, wrapped_key, algorithm, active, created_at, rotated_at
		FROM encryption_keys
		WHERE id = $1
	`
	key, err := scanKey(s.db.QueryRowContext(ctx, query, keyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Key{}, sentinel.ErrNotFound
		}
		return Key{}, fmt.Errorf("get key: %w", err)
	}
	return key, nil
}

// Rotate retires the active key for an alias and installs the replacement in
// one transaction.
func (s *PostgresStore) Rotate(ctx context.Context, alias string, replacement Key, rotatedAt time.Time) (Key, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Key{}, fmt.Errorf("rotate key: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE encryption_keys
		SET active = FALSE, rotated_at = $2
		WHERE alias = $1 AND active
	`, alias, rotatedAt)
	if err != nil {
		return Key{}, fmt.Errorf("rotate key: retire active: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO encryption_keys (id, alias, wrapped_key, algorithm, active, created_at, rotated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NULL)
	`, replacement.ID, replacement.Alias, replacement.WrappedKey, replacement.Algorithm, replacement.CreatedAt)
	if err != nil {
		return Key{}, fmt.Errorf("rotate key: insert replacement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Key{}, fmt.Errorf("rotate key: %w", err)
	}
	return replacement, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (Key, error) {
	var key Key
	var rotatedAt sql.NullTime
	if err := row.Scan(&key.ID, &key.Alias, &key.WrappedKey, &key.Algorithm, &key.Active, &key.CreatedAt, &rotatedAt); err != nil {
		return Key{}, err
	}
	if rotatedAt.Valid {
		t := rotatedAt.Time
		key.RotatedAt = &t
	}
	return key, nil
}
