// Package audit implements the data-quality auditor: duplicate-name
// detection, orphaned-task/missing-client detection, field-fill-rate
// reporting, and the four auto-remediation passes. Phases are distinct
// and best-effort, each logged and isolated from the others' failures.
package audit

import (
	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/dedupe"
)

// DuplicateGroup is a set of entities whose normalized names collide.
type DuplicateGroup struct {
	NormalizedName string
	EntityIDs      []uuid.UUID
}

// GroupDuplicates buckets entities by dedupe.NormalizeName, returning only
// groups with more than one member.
func GroupDuplicates(entityIDs []uuid.UUID, names []string) []DuplicateGroup {
	buckets := map[string][]uuid.UUID{}
	order := []string{}
	for i, name := range names {
		key := dedupe.NormalizeName(name)
		if key == "" {
			continue
		}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], entityIDs[i])
	}
	var out []DuplicateGroup
	for _, key := range order {
		if len(buckets[key]) > 1 {
			out = append(out, DuplicateGroup{NormalizedName: key, EntityIDs: buckets[key]})
		}
	}
	return out
}
