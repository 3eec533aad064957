package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/ananthjv/pixlift/internal/auth"
	"github.com/ananthjv/pixlift/internal/model"
)

// ErrForbidden reports a role/ownership mismatch. It is resolved at the
// boundary and never retried.
var ErrForbidden = errors.New("forbidden")

// Op names an access-layer operation for authorization purposes.
type Op int

const (
	OpRead Op = iota
	OpListAll
)

// ReadGrant is the capability returned by Authorize. Every read site takes a
// grant rather than re-deriving role checks, so the gating rule lives in one
// place.
type ReadGrant struct {
	identity string
	admin    bool
	op       Op
}

// Identity returns the identity the grant is scoped to.
func (g ReadGrant) Identity() string { return g.identity }

// Admin reports whether the grant spans all owners.
func (g ReadGrant) Admin() bool { return g.admin }

// Access is the role-gated read API over a Store.
type Access struct {
	store Store
}

// NewAccess constructs the access layer.
func NewAccess(store Store) *Access {
	return &Access{store: store}
}

// Authorize checks the principal against the requested operation and returns
// a capability for it. Enumeration requires the admin role; scoped reads are
// open to every resolved principal.
func (a *Access) Authorize(p auth.Principal, op Op) (ReadGrant, error) {
	if op == OpListAll && p.Role != model.RoleAdmin {
		return ReadGrant{}, fmt.Errorf("list all metadata as %s: %w", p.Role, ErrForbidden)
	}
	return ReadGrant{
		identity: p.Identity,
		admin:    p.Role == model.RoleAdmin,
		op:       op,
	}, nil
}

// GetByKey returns at most one record. An unknown key yields (nil, nil) — an
// empty result, not an error. A record owned by someone else yields
// ErrForbidden for non-admin grants rather than leaking existence.
func (a *Access) GetByKey(ctx context.Context, grant ReadGrant, assetKey string) (*model.MetadataRecord, error) {
	rec, err := a.store.Get(ctx, assetKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !grant.admin && rec.Owner != grant.identity {
		return nil, fmt.Errorf("asset %s: %w", assetKey, ErrForbidden)
	}
	return rec, nil
}

// ListAll enumerates every owner's records. The grant must have been
// authorized for OpListAll; results are unordered, callers sort.
func (a *Access) ListAll(ctx context.Context, grant ReadGrant) ([]*model.MetadataRecord, error) {
	if !grant.admin || grant.op != OpListAll {
		return nil, fmt.Errorf("list all metadata: %w", ErrForbidden)
	}
	return a.store.List(ctx)
}
