// Package session implements the interaction assembler: it turns a
// stream of inbound messages keyed by (source, chatId, topicId) into
// bounded Interaction rows, splitting on an idle gap and re-homing
// out-of-order arrivals into the interaction whose time range covers them.
// The database is the source of truth; the per-key serialization lives in
// keyLock so concurrent deliveries for one chat can't race.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/resolver"
	"github.com/mityayka1/pkgraph/internal/store"
)

// Assembler appends inbound messages into Interactions.
type Assembler struct {
	store      *store.Store
	resolver   *resolver.Resolver
	sessionGap time.Duration
	locks      *keyLock
}

// New builds an Assembler. sessionGap is the idle period after which the
// next message starts a new interaction (default 4h). res may be
// nil, in which case sender identifiers are left unresolved.
func New(s *store.Store, res *resolver.Resolver, sessionGap time.Duration) *Assembler {
	if sessionGap <= 0 {
		sessionGap = 4 * time.Hour
	}
	return &Assembler{store: s, resolver: res, sessionGap: sessionGap, locks: newKeyLock()}
}

// Inbound is a normalized message envelope from a source adapter.
type Inbound struct {
	Source                 string     `json:"source" validate:"required"`
	ChatID                 string     `json:"chatId" validate:"required"`
	TopicID                string     `json:"topicId"`
	ChatType               string     `json:"chatType"`
	SourceMessageID        string     `json:"sourceMessageId" validate:"required"`
	Timestamp              time.Time  `json:"timestamp" validate:"required"`
	SenderIdentifierType   string     `json:"senderIdentifierType" validate:"required"`
	SenderIdentifierValue  string     `json:"senderIdentifierValue" validate:"required"`
	SenderDisplayName      string     `json:"senderDisplayName"`
	SenderEntityID         *uuid.UUID `json:"senderEntityId,omitempty"`
	Content                string     `json:"content"`
	MediaType              string     `json:"mediaType,omitempty"`
	MediaURL               string     `json:"mediaUrl,omitempty"`
	ReplyToSourceMessageID string     `json:"replyToSourceMessageId,omitempty"`
	IsOutgoing             bool       `json:"isOutgoing"`
}

// Append assigns msg to the interaction covering its timestamp (creating or
// splitting one as needed), then appends the message idempotently. The
// whole per-key decision runs serialized via keyLock so concurrent delivery
// for the same chat can't race on which interaction is "current".
func (a *Assembler) Append(ctx context.Context, msg Inbound) (messageID string, interactionID string, err error) {
	key := msg.Source + "|" + msg.ChatID + "|" + msg.TopicID
	a.locks.withLock(key, func() {
		messageID, interactionID, err = a.appendLocked(ctx, msg)
	})
	return messageID, interactionID, err
}

func (a *Assembler) appendLocked(ctx context.Context, msg Inbound) (string, string, error) {
	tx, err := a.beginTx(ctx)
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback(ctx)

	it, err := a.interactionFor(ctx, tx, msg)
	if err != nil {
		return "", "", err
	}

	message := &store.Message{
		InteractionID:         it.ID,
		SenderEntityID:        msg.SenderEntityID,
		SenderIdentifierType:  msg.SenderIdentifierType,
		SenderIdentifierValue: msg.SenderIdentifierValue,
		Content:               msg.Content,
		IsOutgoing:            msg.IsOutgoing,
		Timestamp:             msg.Timestamp,
		SourceMessageID:       msg.SourceMessageID,
		ReplyToMessageID:      msg.ReplyToSourceMessageID,
		MediaType:             msg.MediaType,
		MediaURL:              msg.MediaURL,
		ChatType:              msg.ChatType,
		TopicID:               msg.TopicID,
	}
	stored, inserted, err := a.store.AppendMessage(ctx, tx, message)
	if err != nil {
		return "", "", err
	}
	if inserted {
		if err := a.store.TouchInteraction(ctx, tx, it.ID, msg.Timestamp); err != nil {
			return "", "", err
		}
		if err := a.store.UpsertParticipant(ctx, tx, it.ID, msg.SenderEntityID, "participant", msg.SenderIdentifierType, msg.SenderIdentifierValue, msg.SenderDisplayName); err != nil {
			return "", "", err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", "", apperr.Transient("commit append message failed", err)
	}

	if inserted {
		a.resolveSender(ctx, msg, stored.ID)
	}
	return stored.ID.String(), it.ID.String(), nil
}

// resolveSender routes the sender identifier through the resolver after
// the message commits: a hit backfills sender_entity_id, a miss lands in the
// pending-resolution queue with this message as a sample. Best-effort; a
// resolution failure never fails the ingest.
func (a *Assembler) resolveSender(ctx context.Context, msg Inbound, messageID uuid.UUID) {
	if a.resolver == nil || msg.SenderEntityID != nil || msg.SenderIdentifierType == "" {
		return
	}
	res, err := a.resolver.Resolve(ctx, msg.SenderIdentifierType, msg.SenderIdentifierValue, msg.SenderDisplayName, messageID.String())
	if err != nil {
		slog.Warn("session: sender resolution failed", "identifier_type", msg.SenderIdentifierType, "error", err)
		return
	}
	if res.Status == resolver.StatusResolved && res.EntityID != nil {
		if err := a.store.AssignMessageSender(ctx, messageID, *res.EntityID); err != nil {
			slog.Warn("session: assigning resolved sender failed", "message_id", messageID, "error", err)
		}
	}
}

// placement classifies a message's timestamp against the open
// interaction for its key.
type placement int

const (
	placeOpen     placement = iota // belongs to the open interaction
	placeCutover                   // idle gap exceeded; close open, start fresh
	placeLookBack                  // predates the open range; find a covering interaction
)

// decidePlacement implements the selection rule: a timestamp inside the
// open interaction's range (including out-of-order arrivals after
// startedAt) stays with it, a timestamp past lastMessageAt stays with it
// only while the idle gap holds, and a timestamp before startedAt belongs
// to whichever earlier interaction covers it.
func decidePlacement(openStartedAt, openLastMessageAt, ts time.Time, gap time.Duration) placement {
	if ts.Before(openStartedAt) {
		return placeLookBack
	}
	if ts.Sub(openLastMessageAt) > gap {
		return placeCutover
	}
	return placeOpen
}

// interactionFor resolves the interaction msg belongs to, closing the open
// one on cutover and creating a new one when nothing covers the timestamp.
func (a *Assembler) interactionFor(ctx context.Context, tx pgx.Tx, msg Inbound) (*store.Interaction, error) {
	open, err := a.store.OpenInteractionForKey(ctx, tx, msg.Source, msg.ChatID, msg.TopicID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		switch decidePlacement(open.StartedAt, open.LastMessageAt, msg.Timestamp, a.sessionGap) {
		case placeOpen:
			return open, nil
		case placeCutover:
			if err := a.store.CloseInteraction(ctx, tx, open.ID, open.LastMessageAt); err != nil {
				return nil, err
			}
		case placeLookBack:
			// The open interaction stays open; the message belongs to an
			// earlier one.
		}
	}

	covering, err := a.store.InteractionCoveringTimestamp(ctx, tx, msg.Source, msg.ChatID, msg.TopicID, msg.Timestamp)
	if err != nil {
		return nil, err
	}
	if covering != nil {
		if covering.Status != "active" {
			// Late arrival straddling a closed boundary: keep it in the
			// earlier interaction per the split policy and queue that
			// interaction for re-segmentation instead of reopening it.
			if err := a.store.MarkForResegmentation(ctx, tx, covering.ID); err != nil {
				return nil, err
			}
		}
		return covering, nil
	}

	interactionType := "telegram_session"
	if msg.ChatType == "phone_call" || msg.ChatType == "video_meeting" {
		interactionType = msg.ChatType
	}
	return a.store.CreateInteraction(ctx, tx, interactionType, msg.Source, msg.ChatID, msg.TopicID, msg.Timestamp, nil)
}

func (a *Assembler) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := a.store.Pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Transient("begin assembler transaction failed", err)
	}
	return tx, nil
}
