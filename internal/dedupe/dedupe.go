package dedupe

const (
	// SkipThreshold: similarity >= this means the candidate is the same
	// row, merge into it.
	SkipThreshold = 0.85
	// ReviewThreshold: similarity in [ReviewThreshold, SkipThreshold) means
	// create the row but flag it for review as a possible duplicate.
	ReviewThreshold = 0.60
)

// Decision is the outcome of the two-tier dedup check.
type Decision string

const (
	DecisionSkip   Decision = "skip"   // merge into existing row
	DecisionReview Decision = "review" // create, needsReview=true
	DecisionCreate Decision = "create" // create normally
)

// Neighbor is one nearest-neighbor candidate from the embedding search.
type Neighbor struct {
	ID         string
	Similarity float64
	Name       string // empty for non-name-bearing kinds (fact values, etc.)
}

// Outcome names the decision and, for skip/review, which neighbor it
// concerns.
type Outcome struct {
	Decision   Decision
	MatchID    string
	Similarity float64
}

// Decide applies the two-tier rule: the nearest neighbor's cosine similarity picks the
// tier, except a strong normalized-name match (edit-distance ratio >=
// 0.90) always counts as at least the review tier even when the embedding
// similarity alone would fall through to "create".
func Decide(candidateName string, neighbors []Neighbor) Outcome {
	if len(neighbors) == 0 {
		return Outcome{Decision: DecisionCreate}
	}
	best := neighbors[0]
	for _, n := range neighbors[1:] {
		if n.Similarity > best.Similarity {
			best = n
		}
	}

	nameMatch := candidateName != "" && best.Name != "" && IsStrongNameMatch(candidateName, best.Name)

	switch {
	case best.Similarity >= SkipThreshold:
		return Outcome{Decision: DecisionSkip, MatchID: best.ID, Similarity: best.Similarity}
	case best.Similarity >= ReviewThreshold || nameMatch:
		return Outcome{Decision: DecisionReview, MatchID: best.ID, Similarity: best.Similarity}
	default:
		return Outcome{Decision: DecisionCreate}
	}
}
