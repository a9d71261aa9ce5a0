package directory

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"aegis/internal/access"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
)

// Reader is the store contract the loader depends on.
type Reader interface {
	GetUser(ctx context.Context, subjectID id.SubjectID) (*User, error)
	ListMemberships(ctx context.Context, subjectID id.SubjectID) ([]MembershipRecord, error)
}

// RecordCache is the optional short-TTL cache over directory records. A nil
// implementation behaves as a permanent miss.
type RecordCache interface {
	Get(ctx context.Context, subjectID id.SubjectID) (User, []MembershipRecord, bool)
	Put(ctx context.Context, user User, memberships []MembershipRecord)
}

// Loader builds principals from stored membership records.
type Loader struct {
	store  Reader
	cache  RecordCache
	logger *slog.Logger
}

// LoaderOption configures optional loader collaborators.
type LoaderOption func(*Loader)

func WithCache(cache RecordCache) LoaderOption {
	return func(l *Loader) {
		// A typed-nil cache still means "no cache".
		if cache != nil {
			l.cache = cache
		}
	}
}

func NewLoader(store Reader, logger *slog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{store: store, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Principal builds the per-request Principal for a subject. User and
// membership records are fetched concurrently; inactive subjects are
// rejected so suspended accounts cannot ride an old token.
func (l *Loader) Principal(ctx context.Context, subjectID id.SubjectID) (access.Principal, error) {
	user, memberships, ok := l.cachedRecords(ctx, subjectID)
	if !ok {
		var err error
		user, memberships, err = l.fetchRecords(ctx, subjectID)
		if err != nil {
			return access.Principal{}, err
		}
		if l.cache != nil {
			l.cache.Put(ctx, user, memberships)
		}
	}

	if user.Status != StatusActive {
		return access.Principal{}, dErrors.New(dErrors.CodeForbidden, "subject is not active")
	}

	principal := access.Principal{
		ID:    user.ID,
		Roles: toRoles(user.Roles),
		OrgID: user.PrimaryOrgID,
	}
	for _, m := range memberships {
		principal.Memberships = append(principal.Memberships, access.Membership{
			OrgID: m.OrgID,
			Roles: toRoles(m.Roles),
		})
	}
	return principal, nil
}

func (l *Loader) cachedRecords(ctx context.Context, subjectID id.SubjectID) (User, []MembershipRecord, bool) {
	if l.cache == nil {
		return User{}, nil, false
	}
	return l.cache.Get(ctx, subjectID)
}

func (l *Loader) fetchRecords(ctx context.Context, subjectID id.SubjectID) (User, []MembershipRecord, error) {
	var (
		user        *User
		memberships []MembershipRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := l.store.GetUser(gctx, subjectID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "subject not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}
		user = fetched
		return nil
	})
	g.Go(func() error {
		fetched, err := l.store.ListMemberships(gctx, subjectID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load memberships")
		}
		memberships = fetched
		return nil
	})
	if err := g.Wait(); err != nil {
		return User{}, nil, err
	}
	return *user, memberships, nil
}

func toRoles(raw []string) []access.Role {
	roles := make([]access.Role, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, access.Role(r))
	}
	return roles
}
