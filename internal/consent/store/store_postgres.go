package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aegis/internal/consent"
	id "aegis/pkg/domain"
)

// PostgresStore persists consent records in PostgreSQL. Idempotent grants
// rely on the partial unique index over (client_id, scope) WHERE revoked_at
// IS NULL, so two concurrent grants can never both insert an active record.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GrantIfAbsent(ctx context.Context, record consent.Record) (consent.Record, bool, error) {
	query := `
		INSERT INTO consent_records (id, client_id, scope, granted_at, revoked_at, granted_by, notes)
		VALUES ($1, $2, $3, $4, NULL, $5, $6)
		ON CONFLICT (client_id, scope) WHERE revoked_at IS NULL DO NOTHING
		RETURNING id
	`
	var insertedID uuid.UUID
	err := s.db.QueryRowContext(ctx, query,
		record.ID,
		uuid.UUID(record.ClientID),
		string(record.Scope),
		record.GrantedAt,
		uuid.UUID(record.GrantedBy),
		record.Notes,
	).Scan(&insertedID)
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		// Unique-violation under a concurrent insert also lands here; fall
		// through to reading the winner in that case.
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
			return consent.Record{}, false, fmt.Errorf("grant consent: %w", err)
		}
	}

	existing, err := s.FindActive(ctx, record.ClientID, record.Scope)
	if err != nil {
		return consent.Record{}, false, err
	}
	if existing == nil {
		return consent.Record{}, false, fmt.Errorf("grant consent: conflicting record disappeared")
	}
	return *existing, false, nil
}

func (s *PostgresStore) FindActive(ctx context.Context, clientID id.SubjectID, scope id.Scope) (*consent.Record, error) {
	query := `
		SELECT id, client_id, scope, granted_at, revoked_at, granted_by, notes
		FROM consent_records
		WHERE client_id = $1 AND scope = $2 AND revoked_at IS NULL
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, uuid.UUID(clientID), string(scope)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, clientID id.SubjectID, scope id.Scope, revokedAt time.Time) (uuid.UUID, bool, error) {
	query := `
		UPDATE consent_records
		SET revoked_at = $3
		WHERE client_id = $1 AND scope = $2 AND revoked_at IS NULL
		RETURNING id
	`
	var revokedID uuid.UUID
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(clientID), string(scope), revokedAt).Scan(&revokedID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("revoke consent: %w", err)
	}
	return revokedID, true, nil
}

func (s *PostgresStore) ListByClient(ctx context.Context, clientID id.SubjectID, includeRevoked bool) ([]consent.Record, error) {
	query := `
		SELECT id, client_id, scope, granted_at, revoked_at, granted_by, notes
		FROM consent_records
		WHERE client_id = $1
	`
	if !includeRevoked {
		query += ` AND revoked_at IS NULL`
	}
	query += ` ORDER BY granted_at`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(clientID))
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var records []consent.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*consent.Record, error) {
	var recordID, clientID, grantedBy uuid.UUID
	var scope, notes string
	var grantedAt time.Time
	var revokedAt sql.NullTime
	if err := row.Scan(&recordID, &clientID, &scope, &grantedAt, &revokedAt, &grantedBy, &notes); err != nil {
		return nil, err
	}
	record := &consent.Record{
		ID:        recordID,
		ClientID:  id.SubjectID(clientID),
		Scope:     id.Scope(scope),
		GrantedAt: grantedAt,
		GrantedBy: id.SubjectID(grantedBy),
		Notes:     notes,
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		record.RevokedAt = &t
	}
	return record, nil
}
