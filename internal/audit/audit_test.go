package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGroupDuplicates(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	names := []string{"Acme Corp", "acme corp.", "Globex"}
	groups := GroupDuplicates(ids, names)
	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}
	if len(groups[0].EntityIDs) != 2 {
		t.Fatalf("expected 2 members in group, got %d", len(groups[0].EntityIDs))
	}
}

func TestGroupDuplicatesNoCollision(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	names := []string{"Acme", "Globex"}
	if groups := GroupDuplicates(ids, names); len(groups) != 0 {
		t.Fatalf("expected 0 groups, got %d", len(groups))
	}
}

func TestSelectKeeperMostChildrenWins(t *testing.T) {
	a := KeeperCandidate{ID: uuid.New(), ChildCount: 1, CreatedAt: time.Now()}
	b := KeeperCandidate{ID: uuid.New(), ChildCount: 5, CreatedAt: time.Now()}
	got := SelectKeeper([]KeeperCandidate{a, b})
	if got != b.ID {
		t.Fatalf("SelectKeeper() = %v, want %v (most children)", got, b.ID)
	}
}

func TestSelectKeeperTiesBreakOnOldest(t *testing.T) {
	older := time.Now().Add(-48 * time.Hour)
	newer := time.Now()
	a := KeeperCandidate{ID: uuid.New(), ChildCount: 1, MemberCount: 1, CreatedAt: older}
	b := KeeperCandidate{ID: uuid.New(), ChildCount: 1, MemberCount: 1, CreatedAt: newer}
	got := SelectKeeper([]KeeperCandidate{a, b})
	if got != a.ID {
		t.Fatalf("SelectKeeper() = %v, want %v (oldest)", got, a.ID)
	}
}
