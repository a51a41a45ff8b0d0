package segmenter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/provider"
	"github.com/mityayka1/pkgraph/internal/store"
)

// UnsegmentedBatchSize bounds how many closed interactions one sweep claims.
const UnsegmentedBatchSize = 25

// WindowSize is the number of messages averaged into one embedding window
// for the sliding-window shift detector.
const WindowSize = 5

// LinkLookbackDays bounds the cross-chat topic linker to recently closed
// segments.
const LinkLookbackDays = 30

// LinkSearchK is how many nearest segments the linker inspects per
// candidate before applying the keyword/participant gates.
const LinkSearchK = 10

// SegmentSummary is the model's topic judgment for one detected segment:
// {topic, keywords[3..8], summary, confidence}.
type SegmentSummary struct {
	Topic      string   `json:"topic"`
	Keywords   []string `json:"keywords"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
}

// BreakSuggester asks an LLM which message indices look like topic
// boundaries, and separately asks it to name and summarize a finished
// segment; the break output is intersected with the embedding shift
// scores. Segmenter depends on the interface rather than
// provider.LLMProvider directly so it can be exercised without a live
// model.
type BreakSuggester interface {
	SuggestBreaks(ctx context.Context, messages []*store.Message) ([]int, error)
	SummarizeSegment(ctx context.Context, messages []*store.Message) (*SegmentSummary, error)
}

// LLMBreakSuggester adapts a provider.LLMProvider into a BreakSuggester.
type LLMBreakSuggester struct {
	Provider provider.LLMProvider
}

// SuggestBreaks asks the model to name message indices (0-based, within
// the given slice) where the topic changes.
func (l *LLMBreakSuggester) SuggestBreaks(ctx context.Context, messages []*store.Message) ([]int, error) {
	prompt := buildBreakPrompt(messages)
	resp, err := l.Provider.Chat(ctx, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: "system", Content: "You find topic-shift boundaries in a chat transcript. Respond with a comma separated list of zero-based message indices where the topic changes, or the single word none."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, apperr.Transient("break suggestion failed", err)
	}
	return parseBreakIndices(resp.Content), nil
}

const segmentSummarySystemPrompt = `You name and summarize one topic segment of a chat transcript.
Respond with a single JSON object: {"topic":"...","keywords":["...3 to 8 short terms..."],"summary":"...one or two sentences...","confidence":0.0-1.0}.
Keywords must be terms that actually appear in the transcript.`

// SummarizeSegment asks the model for the topic name, keywords, summary,
// and its own confidence for one already-bounded segment.
func (l *LLMBreakSuggester) SummarizeSegment(ctx context.Context, messages []*store.Message) (*SegmentSummary, error) {
	prompt := buildBreakPrompt(messages)
	resp, err := l.Provider.Chat(ctx, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: "system", Content: segmentSummarySystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, apperr.Transient("segment summary failed", err)
	}
	var out SegmentSummary
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &out); err != nil {
		return nil, apperr.Upstream("segment summary: invalid model response", err)
	}
	return &out, nil
}

func buildBreakPrompt(messages []*store.Message) string {
	s := ""
	for i, m := range messages {
		s += fmt.Sprintf("[%d] %s\n", i, m.Content)
	}
	return s
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

func parseBreakIndices(content string) []int {
	var out []int
	cur := -1
	for _, r := range content + "," {
		switch {
		case r >= '0' && r <= '9':
			if cur < 0 {
				cur = 0
			}
			cur = cur*10 + int(r-'0')
		default:
			if cur >= 0 {
				out = append(out, cur)
			}
			cur = -1
		}
	}
	return out
}

// Service runs the topic boundary detector and cross-chat linker over
// closed interactions.
type Service struct {
	Store     *store.Store
	Embedder  provider.Embedder
	Suggester BreakSuggester
}

// New builds a segmenter Service.
func New(s *store.Store, embedder provider.Embedder, suggester BreakSuggester) *Service {
	return &Service{Store: s, Embedder: embedder, Suggester: suggester}
}

// SegmentInteraction detects topic boundaries across an interaction's
// messages and persists one TopicalSegment per detected topic.
func (svc *Service) SegmentInteraction(ctx context.Context, interactionID uuid.UUID) ([]*store.TopicalSegment, error) {
	it, err := svc.Store.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	messages, err := svc.Store.MessagesByInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	if len(messages) < MinSegmentMessages {
		return nil, nil
	}

	windows := windowize(messages, WindowSize)
	windowEmbeddings := make([][]float32, len(windows))
	for i, w := range windows {
		windowEmbeddings[i] = averageEmbedding(w)
	}
	shiftScores := ShiftScores(windowEmbeddings)

	var shiftBreaks []int
	for i, sc := range shiftScores {
		if sc >= 0.3 {
			shiftBreaks = append(shiftBreaks, windowBoundaryIndex(i, WindowSize, len(messages)))
		}
	}

	llmBreaks, err := svc.Suggester.SuggestBreaks(ctx, messages)
	if err != nil {
		return nil, err
	}

	breaks := IntersectBreaks(shiftBreaks, llmBreaks)
	ranges := ApplyBreaks(len(messages), breaks)

	var out []*store.TopicalSegment
	for _, r := range ranges {
		seg, err := svc.createSegmentFromRange(ctx, it, messages[r[0]:r[1]])
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

// RunPendingInteractions is the scheduler.Run callback that claims closed
// interactions not yet segmented and runs SegmentInteraction over each,
// the same claim-then-process shape embedworker.RetrySweep uses so one
// bad interaction never wedges the whole batch.
func (svc *Service) RunPendingInteractions(ctx context.Context, _ time.Time) error {
	its, err := svc.Store.ClaimUnsegmentedInteractions(ctx, UnsegmentedBatchSize)
	if err != nil {
		return err
	}
	for _, it := range its {
		segs, err := svc.SegmentInteraction(ctx, it.ID)
		if err != nil {
			slog.Warn("segmenter: interaction segmentation failed", "interaction_id", it.ID, "error", err)
			continue
		}
		for _, seg := range segs {
			if err := svc.LinkCrossChatTopics(ctx, seg); err != nil {
				slog.Warn("segmenter: cross-chat link failed", "segment_id", seg.ID, "error", err)
			}
		}
	}
	return nil
}

func (svc *Service) createSegmentFromRange(ctx context.Context, it *store.Interaction, msgs []*store.Message) (*store.TopicalSegment, error) {
	participants := map[uuid.UUID]bool{}
	for _, m := range msgs {
		if m.SenderEntityID != nil {
			participants[*m.SenderEntityID] = true
		}
	}
	var participantIDs []uuid.UUID
	for id := range participants {
		participantIDs = append(participantIDs, id)
	}

	var topic, summary string
	var keywords []string
	var confidence float64
	if svc.Suggester != nil {
		if s, err := svc.Suggester.SummarizeSegment(ctx, msgs); err == nil {
			topic = s.Topic
			summary = s.Summary
			keywords = ClampKeywords(s.Keywords)
			confidence = s.Confidence
		} else {
			slog.Warn("segmenter: segment summary failed", "interaction_id", it.ID, "error", err)
		}
	}
	coverage := KeywordCoverage(keywords, buildBreakPrompt(msgs))
	if coverage < confidence {
		confidence = coverage
	}

	seg, err := svc.Store.CreateSegment(ctx, &store.TopicalSegment{
		ChatID:         it.ChatID,
		InteractionID:  &it.ID,
		Topic:          topic,
		Keywords:       keywords,
		Summary:        summary,
		Confidence:     confidence,
		ParticipantIDs: participantIDs,
		StartedAt:      &msgs[0].Timestamp,
	})
	if err != nil {
		return nil, err
	}
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Transient("begin attach messages transaction failed", err)
	}
	for _, m := range msgs {
		if err := svc.Store.AttachMessage(ctx, tx, seg.ID, m.ID); err != nil {
			tx.Rollback(ctx)
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Transient("commit attach messages failed", err)
	}
	ended := msgs[len(msgs)-1].Timestamp
	if err := svc.Store.CloseSegment(ctx, seg.ID, summary, keywords, ended); err != nil {
		return nil, err
	}
	seg.Summary, seg.Keywords, seg.EndedAt = summary, keywords, &ended

	emb := averageEmbedding(msgs)
	if emb != nil {
		if err := svc.Store.SetSegmentEmbedding(ctx, seg.ID, emb); err != nil {
			return nil, err
		}
	}
	return seg, nil
}

// LinkCrossChatTopics finds segments in other chats that discuss the same
// topic as seg and records the link symmetrically: last 30 days,
// keyword Jaccard >= 0.5, or participant overlap plus time proximity under
// 24h.
func (svc *Service) LinkCrossChatTopics(ctx context.Context, seg *store.TopicalSegment) error {
	if seg.Embedding == nil {
		return nil
	}
	candidates, _, err := svc.Store.SearchSegmentsByEmbedding(ctx, seg.ID, seg.Embedding, LinkSearchK)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if c.ChatID == seg.ChatID {
			continue
		}
		if c.EndedAt != nil && time.Since(*c.EndedAt) > LinkLookbackDays*24*time.Hour {
			continue
		}
		linked := KeywordJaccard(seg.Keywords, c.Keywords) >= KeywordJaccardThreshold
		if !linked && sharesParticipantsWithinWindow(seg, c) {
			linked = true
		}
		if !linked {
			if shared, err := svc.Store.SegmentsShareActivity(ctx, seg.ID, c.ID); err == nil && shared {
				linked = true
			}
		}
		if !linked {
			continue
		}
		if err := svc.Store.LinkRelatedSegment(ctx, seg.ID, c.ID); err != nil {
			return err
		}
		if err := svc.Store.LinkRelatedSegment(ctx, c.ID, seg.ID); err != nil {
			return err
		}
	}
	return nil
}

func sharesParticipantsWithinWindow(a, b *store.TopicalSegment) bool {
	if a.EndedAt == nil || b.EndedAt == nil {
		return false
	}
	if diff := a.EndedAt.Sub(*b.EndedAt); diff > 24*time.Hour || diff < -24*time.Hour {
		return false
	}
	return SetsIntersect(uuidsToStrings(a.ParticipantIDs), uuidsToStrings(b.ParticipantIDs))
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func windowize(messages []*store.Message, size int) [][]*store.Message {
	var out [][]*store.Message
	for i := 0; i < len(messages); i += size {
		end := i + size
		if end > len(messages) {
			end = len(messages)
		}
		out = append(out, messages[i:end])
	}
	return out
}

func windowBoundaryIndex(windowGap, windowSize, n int) int {
	idx := (windowGap+1)*windowSize - 1
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func averageEmbedding(messages []*store.Message) []float32 {
	var dim int
	for _, m := range messages {
		if len(m.Embedding) > 0 {
			dim = len(m.Embedding)
			break
		}
	}
	if dim == 0 {
		return nil
	}
	sum := make([]float64, dim)
	count := 0
	for _, m := range messages {
		if len(m.Embedding) != dim {
			continue
		}
		for i, v := range m.Embedding {
			sum[i] += float64(v)
		}
		count++
	}
	if count == 0 {
		return nil
	}
	avg := make([]float32, dim)
	for i, v := range sum {
		avg[i] = float32(v / float64(count))
	}
	return avg
}
