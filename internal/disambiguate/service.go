package disambiguate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mityayka1/pkgraph/internal/store"
)

// DefaultContextCacheTTL bounds how long a "has recent interaction" answer
// is trusted before being recomputed, the daily disambiguation-context
// cache.
const DefaultContextCacheTTL = 24 * time.Hour

// Context is the conversational evidence passed alongside a free-text name
// mention.
type Context struct {
	ChatID              string
	MentionedWith       []string
	MessageTimestamp    time.Time
	RecentInteractionIDs []uuid.UUID
}

// Service resolves free-text name mentions against stored entities.
type Service struct {
	store    *store.Store
	cache    *redis.Client
	cacheTTL time.Duration
}

// New builds a Service over the given store. cache may be nil, in which
// case every signal is recomputed from Postgres on every call; a
// non-positive cacheTTL falls back to DefaultContextCacheTTL.
func New(s *store.Store, cache *redis.Client, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultContextCacheTTL
	}
	return &Service{store: s, cache: cache, cacheTTL: cacheTTL}
}

// Resolve runs the scorer end to end: candidate fetch, per-candidate signal
// gathering, scoring, and ranking.
func (svc *Service) Resolve(ctx context.Context, name string, rctx Context) ([]Candidate, error) {
	candidates, err := svc.store.ListEntities(ctx, store.EntityFilter{Search: name, Limit: 20, IncludeSoft: true})
	if err != nil {
		return nil, err
	}

	signals := make(map[string]Signals, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		s := Signals{Active: c.DeletedAt == nil, UpdatedAt: c.UpdatedAt}

		if c.DeletedAt == nil {
			if recent, err := svc.hasRecentInteraction(ctx, c.ID); err == nil {
				s.HasRecentInteraction = recent
			}
			if rctx.ChatID != "" {
				if participated, err := svc.participatedInChat(ctx, c.ID, rctx.ChatID); err == nil {
					s.ParticipatedInChat = participated
				}
			}
			if len(rctx.MentionedWith) > 0 {
				if linked, err := svc.linkedToAny(ctx, c.ID, rctx.MentionedWith); err == nil {
					s.LinkedToMentionedEntity = linked
				}
			}
		}

		signals[c.ID.String()] = s
		ids = append(ids, c.ID.String())
	}

	return Rank(ids, signals), nil
}

func (svc *Service) hasRecentInteraction(ctx context.Context, entityID uuid.UUID) (bool, error) {
	cacheKey := "disambig:recent:" + entityID.String()
	if svc.cache != nil {
		if v, err := svc.cache.Get(ctx, cacheKey).Result(); err == nil {
			return v == "1", nil
		}
	}

	rows, err := svc.store.Pool.Query(ctx, `
		SELECT 1 FROM interaction_participants p
		JOIN interactions i ON i.id = p.interaction_id
		WHERE p.entity_id = $1 AND i.last_message_at >= $2 LIMIT 1`, entityID, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	recent := rows.Next()
	if err := rows.Err(); err != nil {
		return false, err
	}

	if svc.cache != nil {
		val := "0"
		if recent {
			val = "1"
		}
		svc.cache.Set(ctx, cacheKey, val, svc.cacheTTL)
	}
	return recent, nil
}

func (svc *Service) participatedInChat(ctx context.Context, entityID uuid.UUID, chatID string) (bool, error) {
	rows, err := svc.store.Pool.Query(ctx, `
		SELECT 1 FROM interaction_participants p
		JOIN interactions i ON i.id = p.interaction_id
		WHERE p.entity_id = $1 AND i.chat_id = $2 LIMIT 1`, entityID, chatID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// linkedToAny checks the "linked" definition: directly via
// organizationId, or via an employment/team/client_vendor relation with
// validUntil IS NULL, to an entity whose name contains any mentionedWith
// term.
func (svc *Service) linkedToAny(ctx context.Context, entityID uuid.UUID, mentionedWith []string) (bool, error) {
	rows, err := svc.store.Pool.Query(ctx, `
		SELECT coalesce(org.name, ''), coalesce(rel.name, '')
		FROM entities e
		LEFT JOIN entities org ON org.id = e.organization_id
		LEFT JOIN entity_relations r ON r.from_entity_id = e.id AND r.valid_until IS NULL
			AND r.relation_type IN ('employment','team','client_vendor')
		LEFT JOIN entities rel ON rel.id = r.to_entity_id
		WHERE e.id = $1`, entityID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var orgName, relName string
		if err := rows.Scan(&orgName, &relName); err != nil {
			return false, err
		}
		for _, term := range mentionedWith {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if strings.Contains(strings.ToLower(orgName), term) || strings.Contains(strings.ToLower(relName), term) {
				return true, nil
			}
		}
	}
	return false, rows.Err()
}
