package bootstrap

import (
	"context"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/store"
)

// SeedOwner ensures exactly one owner entity exists, creating name as the
// owner if the graph has none yet. Idempotent: a second run against an
// already-seeded graph returns the existing owner untouched.
func SeedOwner(ctx context.Context, s *store.Store, name string) (*store.Entity, error) {
	existing, err := s.ListEntities(ctx, store.EntityFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.IsOwner {
			return e, nil
		}
	}
	if name == "" {
		return nil, apperr.Validation("owner name required for first-run seed", nil)
	}
	return s.CreateEntity(ctx, &store.Entity{
		Type:           "person",
		Name:           name,
		IsOwner:        true,
		CreationSource: "manual",
	})
}
