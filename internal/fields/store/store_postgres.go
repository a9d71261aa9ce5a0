package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists field metadata in PostgreSQL. Registrations are
// rare relative to lookups, so no cache layer is kept in front of it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, meta Meta) error {
	query := `
		INSERT INTO encryption_field_metadata (resource, field_name, key_alias, deterministic, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (resource, field_name) DO UPDATE
		SET key_alias = EXCLUDED.key_alias, deterministic = EXCLUDED.deterministic
	`
	_, err := s.db.ExecContext(ctx, query,
		meta.Resource,
		meta.Field,
		meta.KeyAlias,
		meta.Deterministic,
		meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert field metadata: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByResource(ctx context.Context, resource string) ([]Meta, error) {
	query := `
		SELECT resource, field_name, key_alias, deterministic, created_at
		FROM encryption_field_metadata
		WHERE resource = $1
		ORDER BY field_name
	`
	rows, err := s.db.QueryContext(ctx, query, resource)
	if err != nil {
		return nil, fmt.Errorf("list field metadata: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		if err := rows.Scan(&m.Resource, &m.Field, &m.KeyAlias, &m.Deterministic, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan field metadata: %w", err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}
