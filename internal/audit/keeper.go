package audit

import (
	"time"

	"github.com/google/uuid"
)

// KeeperCandidate is one member of a duplicate group, carrying the signals
// the keeper-selection tie-break chain needs.
type KeeperCandidate struct {
	ID          uuid.UUID
	ChildCount  int // activities: descendant count
	MemberCount int // organizations: linked-entity count
	CreatedAt   time.Time
}

// SelectKeeper picks which duplicate survives a merge: most children wins,
// ties broken by most members, ties broken by oldest createdAt.
func SelectKeeper(candidates []KeeperCandidate) uuid.UUID {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ChildCount != best.ChildCount {
			if c.ChildCount > best.ChildCount {
				best = c
			}
			continue
		}
		if c.MemberCount != best.MemberCount {
			if c.MemberCount > best.MemberCount {
				best = c
			}
			continue
		}
		if c.CreatedAt.Before(best.CreatedAt) {
			best = c
		}
	}
	return best.ID
}
