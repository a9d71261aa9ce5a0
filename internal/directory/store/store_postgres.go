package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aegis/internal/directory"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// PostgresStore reads users and memberships from PostgreSQL.
// This store is pure I/O - principal construction belongs in the loader.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetUser(ctx context.Context, subjectID id.SubjectID) (*directory.User, error) {
	query := `
		SELECT id, status, primary_org_id, roles
		FROM users
		WHERE id = $1
	`
	var userID uuid.UUID
	var status string
	var primaryOrgID uuid.NullUUID
	var roles pq.StringArray
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(subjectID)).Scan(&userID, &status, &primaryOrgID, &roles)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &directory.User{
		ID:           id.SubjectID(userID),
		Status:       status,
		PrimaryOrgID: id.OrgID(primaryOrgID.UUID),
		Roles:        roles,
	}, nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, subjectID id.SubjectID) ([]directory.MembershipRecord, error) {
	query := `
		SELECT org_id, roles
		FROM org_memberships
		WHERE subject_id = $1
		ORDER BY org_id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var records []directory.MembershipRecord
	for rows.Next() {
		var orgID uuid.UUID
		var roles pq.StringArray
		if err := rows.Scan(&orgID, &roles); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		records = append(records, directory.MembershipRecord{
			OrgID: id.OrgID(orgID),
			Roles: roles,
		})
	}
	return records, rows.Err()
}
