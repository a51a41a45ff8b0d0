// Package extract runs the extraction orchestrator: given a closed
// topical segment, ask the LLM for the facts/activities/commitments it
// contains, resolve each mentioned participant, run every candidate
// through the deduper, and create drafts plus their pending approvals.
// The model call goes through provider.LLMProvider.Chat; each draft is
// created independently so one bad candidate never aborts its batch.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mityayka1/pkgraph/internal/provider"
	"github.com/mityayka1/pkgraph/internal/store"
)

// MaxRetries bounds the exponential-backoff retry on a failed extraction
// pass over one segment.
const MaxRetries = 3

// ExtractedFact, ExtractedActivity, and ExtractedCommitment are the shapes
// the model's strict-schema JSON response parses into, one per item the
// model found in the segment.
type ExtractedFact struct {
	EntityMention string  `json:"entityMention"`
	FactType      string  `json:"factType"`
	Category      string  `json:"category"`
	Value         string  `json:"value"`
	Confidence    float64 `json:"confidence"`
}

type ExtractedActivity struct {
	Name          string  `json:"name"`
	ActivityType  string  `json:"activityType"`
	OwnerMention  string  `json:"ownerMention"`
	ClientMention string  `json:"clientMention"`
	ParentMention string  `json:"parentMention"`
	Confidence    float64 `json:"confidence"`
}

type ExtractedCommitment struct {
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	FromMention    string  `json:"fromMention"`
	ToMention      string  `json:"toMention"`
	DueDate        string  `json:"dueDate"` // RFC3339, empty if none
	RecurrenceRule string  `json:"recurrenceRule"`
	Confidence     float64 `json:"confidence"`
}

// Result is the strict-schema payload the model must return.
type Result struct {
	Facts       []ExtractedFact       `json:"facts"`
	Activities  []ExtractedActivity   `json:"activities"`
	Commitments []ExtractedCommitment `json:"commitments"`
}

// BuildPrompt renders the segment's messages plus its known participants
// into the extraction prompt.
func BuildPrompt(seg *store.TopicalSegment, messages []*store.Message, participantNames map[string]string) string {
	var sb strings.Builder
	sb.WriteString("Topic: ")
	sb.WriteString(seg.Topic)
	sb.WriteString("\nParticipants:\n")
	for id, name := range participantNames {
		fmt.Fprintf(&sb, "- %s (%s)\n", name, id)
	}
	sb.WriteString("\nTranscript:\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.SenderIdentifierValue, m.Content)
	}
	return sb.String()
}

const systemPrompt = `You extract structured facts, activities, and commitments from a chat transcript segment.
Respond with a single JSON object: {"facts":[...],"factsEach":{"entityMention","factType","category","value","confidence"},"activities":[...],"commitments":[...]}.
Only extract what is explicitly stated or strongly implied. Use the participant display names given for entityMention/ownerMention/fromMention/toMention.`

// Parse validates and decodes the model's raw response into a Result.
func Parse(raw string) (*Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &r); err != nil {
		return nil, fmt.Errorf("extract: invalid model response: %w", err)
	}
	return &r, nil
}

// extractJSONObject trims any leading/trailing prose a model adds around
// the JSON object, a defensive measure since not every provider honors a
// strict JSON-only instruction.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}

// ChatRequestFor builds the provider.ChatRequest for one segment's
// extraction pass.
func ChatRequestFor(prompt string) *provider.ChatRequest {
	return &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	}
}
