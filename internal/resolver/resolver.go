// Package resolver maps source-platform identifiers to entities: a
// request/pending/resolved state machine where an unknown identifier lands
// in a pending queue for an operator (or the auto-attach heuristic) to
// settle later, while resolution itself stays a direct, synchronous DB
// round trip.
package resolver

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/store"
)

// Status is the outcome of a Resolve call.
type Status string

const (
	StatusResolved Status = "resolved"
	StatusPending  Status = "pending"
)

// Result carries the resolution outcome.
type Result struct {
	Status   Status
	EntityID *uuid.UUID
	PendingID *uuid.UUID
}

// Resolver resolves source-platform identifiers to entities.
type Resolver struct {
	store *store.Store
}

// New builds a Resolver over the given store.
func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve does the identifier lookup, the auto-attach heuristic, and the
// pending-row bookkeeping on miss.
func (r *Resolver) Resolve(ctx context.Context, identifierType, identifierValue, displayName, sampleMessageID string) (*Result, error) {
	if existing, err := r.store.GetIdentifier(ctx, identifierType, identifierValue); err == nil {
		return &Result{Status: StatusResolved, EntityID: &existing.EntityID}, nil
	}

	if displayName != "" {
		if entityID, ok, err := r.autoAttachByName(ctx, displayName); err != nil {
			return nil, err
		} else if ok {
			if _, err := r.store.CreateIdentifier(ctx, entityID, identifierType, identifierValue, nil); err != nil {
				return nil, err
			}
			// A pending row may already exist for this identifier from
			// earlier messages; close it out as an auto resolution.
			if p, err := r.store.GetPendingResolution(ctx, identifierType, identifierValue); err == nil {
				_ = r.store.AttachResolution(ctx, p.ID, entityID, "auto")
			}
			return &Result{Status: StatusResolved, EntityID: &entityID}, nil
		}
	}

	pending, err := r.store.UpsertPendingResolution(ctx, identifierType, identifierValue, displayName, sampleMessageID)
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusPending, PendingID: &pending.ID}, nil
}

// autoAttachByName implements the private-chat auto-resolve heuristic: if
// displayName alone exactly matches a single active entity's name and no
// other candidate exists, resolve automatically.
func (r *Resolver) autoAttachByName(ctx context.Context, displayName string) (uuid.UUID, bool, error) {
	candidates, err := r.store.ListEntities(ctx, store.EntityFilter{Search: displayName, Limit: 2})
	if err != nil {
		return uuid.UUID{}, false, err
	}
	var exact []store.Entity
	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(displayName)) {
			exact = append(exact, *c)
		}
	}
	if len(exact) != 1 || len(candidates) != 1 {
		return uuid.UUID{}, false, nil
	}
	return exact[0].ID, true, nil
}

// Attach resolves a pending row onto entityID (operator action).
func (r *Resolver) Attach(ctx context.Context, pendingID, entityID uuid.UUID) error {
	return r.store.AttachResolution(ctx, pendingID, entityID, "manual")
}

// CreateNew resolves a pending row by minting a brand new entity (operator
// action).
func (r *Resolver) CreateNew(ctx context.Context, pendingID uuid.UUID, name, entityType string) (*store.Entity, error) {
	if entityType != "person" && entityType != "organization" {
		return nil, apperr.Validation("entity type must be person or organization", nil)
	}
	entity, err := r.store.CreateEntity(ctx, &store.Entity{Type: entityType, Name: name, CreationSource: "manual"})
	if err != nil {
		return nil, err
	}
	if err := r.store.AttachResolution(ctx, pendingID, entity.ID, "manual"); err != nil {
		return nil, err
	}
	return entity, nil
}

// Reject marks a pending row "merged" with no target (operator action);
// the identifier itself stays pending for future batching.
func (r *Resolver) Reject(ctx context.Context, pendingID uuid.UUID) error {
	return r.store.RejectResolution(ctx, pendingID)
}
