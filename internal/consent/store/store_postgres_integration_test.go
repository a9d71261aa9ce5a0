//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"aegis/internal/consent"
	"aegis/internal/consent/store"
	id "aegis/pkg/domain"
	"aegis/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "consent_records")
	s.Require().NoError(err)
}

func newRecord(clientID id.SubjectID, scope id.Scope) consent.Record {
	return consent.Record{
		ID:        uuid.New(),
		ClientID:  clientID,
		Scope:     scope,
		GrantedAt: time.Now().UTC().Truncate(time.Microsecond),
		GrantedBy: id.SubjectID(uuid.New()),
		Notes:     "integration test",
	}
}

// TestConcurrentGrants verifies that racing grants for the same (client,
// scope) pair insert exactly one active record.
func (s *PostgresStoreSuite) TestConcurrentGrants() {
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())
	const goroutines = 50

	var wg sync.WaitGroup
	var inserted atomic.Int32
	results := make([]consent.Record, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			record, created, err := s.store.GrantIfAbsent(ctx, newRecord(clientID, id.ScopeFinancialData))
			s.Require().NoError(err)
			if created {
				inserted.Add(1)
			}
			results[n] = record
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), inserted.Load(), "exactly one grant should insert")
	for _, record := range results {
		s.Equal(results[0].ID, record.ID, "all callers should see the same record")
	}

	var activeCount int
	err := s.postgres.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM consent_records WHERE client_id = $1 AND revoked_at IS NULL",
		uuid.UUID(clientID),
	).Scan(&activeCount)
	s.Require().NoError(err)
	s.Equal(1, activeCount)
}

func (s *PostgresStoreSuite) TestRevokeThenRegrant() {
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())

	first, created, err := s.store.GrantIfAbsent(ctx, newRecord(clientID, id.ScopeTaxRecords))
	s.Require().NoError(err)
	s.True(created)

	revokedID, revoked, err := s.store.Revoke(ctx, clientID, id.ScopeTaxRecords, time.Now().UTC())
	s.Require().NoError(err)
	s.True(revoked)
	s.Equal(first.ID, revokedID, "revoke reports the tombstoned record")

	active, err := s.store.FindActive(ctx, clientID, id.ScopeTaxRecords)
	s.Require().NoError(err)
	s.Nil(active)

	// A regrant after revocation is a fresh record, not a resurrection.
	second, created, err := s.store.GrantIfAbsent(ctx, newRecord(clientID, id.ScopeTaxRecords))
	s.Require().NoError(err)
	s.True(created)
	s.NotEqual(first.ID, second.ID)

	all, err := s.store.ListByClient(ctx, clientID, true)
	s.Require().NoError(err)
	s.Len(all, 2)

	activeOnly, err := s.store.ListByClient(ctx, clientID, false)
	s.Require().NoError(err)
	s.Require().Len(activeOnly, 1)
	s.Equal(second.ID, activeOnly[0].ID)
}

func (s *PostgresStoreSuite) TestRevokeWithoutActiveConsent() {
	revokedID, revoked, err := s.store.Revoke(context.Background(), id.SubjectID(uuid.New()), id.ScopeMarketing, time.Now().UTC())
	s.Require().NoError(err)
	s.False(revoked)
	s.Equal(uuid.Nil, revokedID)
}

func (s *PostgresStoreSuite) TestScopesAreIndependent() {
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())

	_, _, err := s.store.GrantIfAbsent(ctx, newRecord(clientID, id.ScopeContactInfo))
	s.Require().NoError(err)
	_, _, err = s.store.GrantIfAbsent(ctx, newRecord(clientID, id.ScopeFinancialData))
	s.Require().NoError(err)

	_, revoked, err := s.store.Revoke(ctx, clientID, id.ScopeContactInfo, time.Now().UTC())
	s.Require().NoError(err)
	s.True(revoked)

	active, err := s.store.FindActive(ctx, clientID, id.ScopeFinancialData)
	s.Require().NoError(err)
	s.Require().NotNil(active)
	s.Equal(id.ScopeFinancialData, active.Scope)
}
