package dedupe

import (
	"context"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/store"
)

// FactNeighborsK bounds how many nearest facts the embedding search
// inspects per candidate.
const FactNeighborsK = 5

// Service runs the embedding nearest-neighbor search and applies its
// Decide outcome against the fact store.
type Service struct {
	Store *store.Store
}

// New builds a dedupe Service.
func New(s *store.Store) *Service {
	return &Service{Store: s}
}

// CheckFact runs the dedup check against a not-yet-created fact: searches for the
// nearest facts of the same type on the same entity, decides, and, on
// skip, bumps the matched fact's confirmation count instead of creating a
// new draft. Callers create the draft themselves when Outcome.Decision is
// review or create, setting needsReview/reviewReason from the Outcome.
func (svc *Service) CheckFact(ctx context.Context, entityID uuid.UUID, factType, candidateValue string, candidateEmbedding []float32) (Outcome, error) {
	facts, sims, err := svc.Store.SearchFactsByEmbedding(ctx, entityID, factType, candidateEmbedding, FactNeighborsK)
	if err != nil {
		return Outcome{}, err
	}
	neighbors := make([]Neighbor, len(facts))
	for i, f := range facts {
		name := ""
		if f.Value != nil {
			name = *f.Value
		}
		neighbors[i] = Neighbor{ID: f.ID.String(), Similarity: sims[i], Name: name}
	}
	outcome := Decide(candidateValue, neighbors)
	if outcome.Decision == DecisionSkip {
		matchID, err := uuid.Parse(outcome.MatchID)
		if err != nil {
			return outcome, err
		}
		if _, err := svc.Store.BumpConfirmation(ctx, matchID); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// CheckActivity runs the dedup check against a not-yet-created activity: searches for
// the nearest activities of the same type owned by ownerID, decides, and,
// on skip, bumps the matched activity's confirmation count instead of
// creating a new draft.
func (svc *Service) CheckActivity(ctx context.Context, ownerID uuid.UUID, activityType, candidateName string, candidateEmbedding []float32) (Outcome, error) {
	acts, sims, err := svc.Store.SearchActivitiesByEmbedding(ctx, ownerID, activityType, candidateEmbedding, FactNeighborsK)
	if err != nil {
		return Outcome{}, err
	}
	neighbors := make([]Neighbor, len(acts))
	for i, a := range acts {
		neighbors[i] = Neighbor{ID: a.ID.String(), Similarity: sims[i], Name: a.Name}
	}
	outcome := Decide(candidateName, neighbors)
	if outcome.Decision == DecisionSkip {
		matchID, err := uuid.Parse(outcome.MatchID)
		if err != nil {
			return outcome, err
		}
		if _, err := svc.Store.BumpActivityConfirmation(ctx, matchID); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// CheckCommitment runs the dedup check against a not-yet-created commitment: searches
// for the nearest commitments of the same type from fromID, decides, and,
// on skip, bumps the matched commitment's confirmation count instead of
// creating a new draft.
func (svc *Service) CheckCommitment(ctx context.Context, fromID uuid.UUID, commitmentType, candidateTitle string, candidateEmbedding []float32) (Outcome, error) {
	cs, sims, err := svc.Store.SearchCommitmentsByEmbedding(ctx, fromID, commitmentType, candidateEmbedding, FactNeighborsK)
	if err != nil {
		return Outcome{}, err
	}
	neighbors := make([]Neighbor, len(cs))
	for i, c := range cs {
		neighbors[i] = Neighbor{ID: c.ID.String(), Similarity: sims[i], Name: c.Title}
	}
	outcome := Decide(candidateTitle, neighbors)
	if outcome.Decision == DecisionSkip {
		matchID, err := uuid.Parse(outcome.MatchID)
		if err != nil {
			return outcome, err
		}
		if _, err := svc.Store.BumpCommitmentConfirmation(ctx, matchID); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}
