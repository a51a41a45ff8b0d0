// Package disambiguate scores candidate entities for a free-text name
// mention against a conversational context. The scoring itself is a pure
// function over pre-fetched signals: independent boolean signals summed
// against a fixed weight table, with the contributing reasons kept so a
// reviewer can see why a candidate ranked where it did.
package disambiguate

import (
	"sort"
	"time"
)

const (
	weightActive             = 0.1
	weightRecentInteraction  = 0.3
	weightSameChat           = 0.2
	weightMentionedWithLink  = 0.4

	// AmbiguousTopRatio: if the runner-up scores at least this fraction of
	// the winner, treat the result as ambiguous.
	AmbiguousTopRatio = 0.8
	// AmbiguousTopFloor: a winner below this score is never confident
	// enough to auto-resolve.
	AmbiguousTopFloor = 0.3
)

// Signals is the pre-fetched evidence for one candidate entity; callers
// (internal/store-backed) compute these from the DB, this package only
// does the arithmetic and ranking.
type Signals struct {
	Active                  bool
	HasRecentInteraction    bool // any interaction in the last 7 days
	ParticipatedInChat      bool
	LinkedToMentionedEntity bool
	UpdatedAt               time.Time
}

// Candidate is one scored entity.
type Candidate struct {
	EntityID  string
	Score     float64
	Reasons   []string
	UpdatedAt time.Time
}

// Score applies the weight table to one candidate's signals.
func Score(s Signals) (float64, []string) {
	var score float64
	var reasons []string
	if s.Active {
		score += weightActive
		reasons = append(reasons, "active")
	}
	if s.HasRecentInteraction {
		score += weightRecentInteraction
		reasons = append(reasons, "recent_interaction")
	}
	if s.ParticipatedInChat {
		score += weightSameChat
		reasons = append(reasons, "participated_in_chat")
	}
	if s.LinkedToMentionedEntity {
		score += weightMentionedWithLink
		reasons = append(reasons, "linked_to_mentioned_entity")
	}
	return score, reasons
}

// Rank scores every candidate and sorts highest-first, breaking ties by
// more recent updatedAt.
func Rank(entityIDs []string, signals map[string]Signals) []Candidate {
	out := make([]Candidate, 0, len(entityIDs))
	for _, id := range entityIDs {
		s := signals[id]
		score, reasons := Score(s)
		out = append(out, Candidate{EntityID: id, Score: score, Reasons: reasons, UpdatedAt: s.UpdatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// IsAmbiguous applies the default confidence cutoff: the top candidate is
// too weak, or the runner-up is too close behind it.
func IsAmbiguous(ranked []Candidate) bool {
	if len(ranked) == 0 {
		return true
	}
	top := ranked[0].Score
	if top < AmbiguousTopFloor {
		return true
	}
	if len(ranked) > 1 && ranked[1].Score >= AmbiguousTopRatio*top {
		return true
	}
	return false
}
