package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/consent/store"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/audit"
	auditmemory "aegis/pkg/platform/audit/store/memory"
)

func newTestService(t *testing.T) (*Service, *auditmemory.Store) {
	t.Helper()
	sink := auditmemory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store.NewMemoryStore(), audit.NewPublisher(sink), logger), sink
}

func TestGrantIsIdempotent(t *testing.T) {
	svc, sink := newTestService(t)
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())
	grantedBy := id.SubjectID(uuid.New())

	first, err := svc.Grant(ctx, clientID, id.ScopeFinancialData, grantedBy, "intake form")
	require.NoError(t, err)

	second, err := svc.Grant(ctx, clientID, id.ScopeFinancialData, grantedBy, "duplicate submit")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeat grant returns the existing record")
	assert.Equal(t, "intake form", second.Notes)

	events := sink.All()
	require.Len(t, events, 1, "only the creating grant emits an audit event")
	assert.Equal(t, string(audit.EventConsentGranted), events[0].Action)
	assert.Equal(t, id.ScopeFinancialData.String(), events[0].Scope)
}

func TestRevokeThenRegrant(t *testing.T) {
	svc, sink := newTestService(t)
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())
	actor := id.SubjectID(uuid.New())

	original, err := svc.Grant(ctx, clientID, id.ScopeTaxRecords, actor, "")
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, clientID, id.ScopeTaxRecords, actor)
	require.NoError(t, err)
	assert.True(t, revoked)

	granted, err := svc.Check(ctx, clientID, id.ScopeTaxRecords)
	require.NoError(t, err)
	assert.False(t, granted)

	regrant, err := svc.Grant(ctx, clientID, id.ScopeTaxRecords, actor, "")
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, regrant.ID, "re-grant after revocation creates a new record")

	records, err := svc.List(ctx, clientID, true)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	active, err := svc.List(ctx, clientID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, regrant.ID, active[0].ID)

	assert.Len(t, sink.All(), 4, "grant, revoke, check, re-grant each audited")
}

func TestCheckIsAudited(t *testing.T) {
	svc, sink := newTestService(t)
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())

	granted, err := svc.Grant(ctx, clientID, id.ScopeContactInfo, id.SubjectID(uuid.New()), "")
	require.NoError(t, err)

	ok, err := svc.Check(ctx, clientID, id.ScopeContactInfo)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Check(ctx, clientID, id.ScopeFinancialData)
	require.NoError(t, err)
	require.False(t, ok)

	var checks []audit.Event
	for _, event := range sink.All() {
		if event.Action == string(audit.EventConsentChecked) {
			checks = append(checks, event)
		}
	}
	require.Len(t, checks, 2)
	assert.Equal(t, "granted", checks[0].Decision)
	assert.Equal(t, granted.ID.String(), checks[0].ResourceID)
	assert.Equal(t, id.ScopeContactInfo.String(), checks[0].Scope)
	assert.Equal(t, "denied", checks[1].Decision)
	assert.Empty(t, checks[1].ResourceID)
}

func TestRevokeAuditEventReferencesRecord(t *testing.T) {
	svc, sink := newTestService(t)
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())
	actor := id.SubjectID(uuid.New())

	granted, err := svc.Grant(ctx, clientID, id.ScopeMarketing, actor, "")
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, clientID, id.ScopeMarketing, actor)
	require.NoError(t, err)
	require.True(t, revoked)

	var revokeEvents []audit.Event
	for _, event := range sink.All() {
		if event.Action == string(audit.EventConsentRevoked) {
			revokeEvents = append(revokeEvents, event)
		}
	}
	require.Len(t, revokeEvents, 1)
	assert.Equal(t, granted.ID.String(), revokeEvents[0].ResourceID)
	assert.Equal(t, actor, revokeEvents[0].ActorID)
}

func TestRevokeWithoutActiveConsent(t *testing.T) {
	svc, sink := newTestService(t)
	ctx := context.Background()

	revoked, err := svc.Revoke(ctx, id.SubjectID(uuid.New()), id.ScopeMarketing, id.SubjectID(uuid.New()))
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Empty(t, sink.All(), "no-op revoke emits nothing")
}

func TestGrantRequiresClientID(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Grant(context.Background(), id.SubjectID{}, id.ScopeContactInfo, id.SubjectID(uuid.New()), "")
	assert.Error(t, err)
}

func TestCheckDistinguishesScopes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	clientID := id.SubjectID(uuid.New())

	_, err := svc.Grant(ctx, clientID, id.ScopeContactInfo, id.SubjectID(uuid.New()), "")
	require.NoError(t, err)

	granted, err := svc.Check(ctx, clientID, id.ScopeContactInfo)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = svc.Check(ctx, clientID, id.ScopeFinancialData)
	require.NoError(t, err)
	assert.False(t, granted)
}
