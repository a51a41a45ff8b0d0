// Package main is the entry point for pkgraph-slackbridge: a reference
// source adapter that forwards Slack messages into pkgraphd's ingest
// endpoint and posts commitment reminders back to Slack, the pattern every
// other chat-platform adapter (Discord, Teams, SMS) is expected to follow.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/mityayka1/pkgraph/internal/config"
	"github.com/mityayka1/pkgraph/internal/queue"
	"github.com/mityayka1/pkgraph/internal/runtime"
	"github.com/mityayka1/pkgraph/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pkgraph-slackbridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, kafkaCfg, obsCfg, err := config.LoadSlackBridge()
	if err != nil {
		return err
	}
	runtime.InitLogging(*obsCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &bridge{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	api, err := b.slackClient()
	if err != nil {
		return err
	}
	sm := socketmode.New(api, socketmode.OptionLog(nil))
	b.slack = api

	consumer := queue.NewKafkaConsumer(kafkaCfg.Brokers, kafkaCfg.ConsumerGroup+"-slackbridge", []string{kafkaCfg.NotificationTopic})
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Close()

	go b.deliverReminders(ctx, consumer)
	go b.runSocketMode(ctx, sm)

	slog.Info("pkgraph-slackbridge started", "pkgraph_base_url", cfg.PKGraphBaseURL)
	<-ctx.Done()
	return nil
}

// bridge holds the Slack client and the pkgraphd ingest credentials; one
// instance per process.
type bridge struct {
	cfg    *config.SlackBridgeConfig
	client *http.Client
	slack  *slack.Client
}

func (b *bridge) slackClient() (*slack.Client, error) {
	token := strings.TrimSpace(b.cfg.SlackBotToken)
	if token == "" {
		return nil, errors.New("missing SLACK_BOT_TOKEN")
	}
	opts := []slack.Option{slack.OptionAppLevelToken(b.cfg.SlackAppToken)}
	if base := strings.TrimSpace(b.cfg.SlackAPIBase); base != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(base, "/")+"/"))
	}
	return slack.New(token, opts...), nil
}

// runSocketMode is the ingest half: it drains Slack's socketmode event
// channel and forwards plain messages and app mentions to pkgraphd.
func (b *bridge) runSocketMode(ctx context.Context, sm *socketmode.Client) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-sm.Events:
				switch evt.Type {
				case socketmode.EventTypeEventsAPI:
					payload, ok := evt.Data.(slackevents.EventsAPIEvent)
					if !ok {
						continue
					}
					sm.Ack(*evt.Request)
					b.handleEventsAPI(ctx, payload)
				case socketmode.EventTypeSlashCommand:
					cmd, ok := evt.Data.(slack.SlashCommand)
					if !ok {
						continue
					}
					sm.Ack(*evt.Request)
					b.forwardInbound(ctx, inboundMessage{
						Source:     "slack",
						ChatID:     cmd.ChannelID,
						SenderID:   cmd.UserID,
						Text:       strings.TrimSpace(cmd.Command + " " + cmd.Text),
						IsGroup:    !strings.HasPrefix(strings.ToUpper(cmd.ChannelID), "D"),
						Mentioned:  true,
						MessageID:  cmd.TriggerID,
					})
				}
			}
		}
	}()
	if err := sm.Run(); err != nil && ctx.Err() == nil {
		slog.Error("slack socket mode stopped", "error", err)
	}
}

func (b *bridge) handleEventsAPI(ctx context.Context, payload slackevents.EventsAPIEvent) {
	switch ev := payload.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.SubType != "" {
			return
		}
		b.forwardInbound(ctx, inboundMessage{
			Source:    "slack",
			ChatID:    ev.Channel,
			ThreadID:  ev.ThreadTimeStamp,
			SenderID:  ev.User,
			Text:      ev.Text,
			IsGroup:   ev.ChannelType != "im",
			MessageID: ev.TimeStamp,
		})
	case *slackevents.AppMentionEvent:
		b.forwardInbound(ctx, inboundMessage{
			Source:    "slack",
			ChatID:    ev.Channel,
			ThreadID:  ev.ThreadTimeStamp,
			SenderID:  ev.User,
			Text:      ev.Text,
			IsGroup:   true,
			Mentioned: true,
			MessageID: ev.TimeStamp,
		})
	}
}

type inboundMessage struct {
	Source    string
	ChatID    string
	ThreadID  string
	SenderID  string
	Text      string
	IsGroup   bool
	Mentioned bool
	MessageID string
}

// forwardInbound hands one Slack event off to pkgraphd's ingest endpoint as
// a session.Inbound, the same shape every source adapter is expected to
// produce.
func (b *bridge) forwardInbound(ctx context.Context, m inboundMessage) {
	m.ChatID = strings.TrimSpace(m.ChatID)
	m.SenderID = strings.TrimSpace(m.SenderID)
	if m.ChatID == "" || m.SenderID == "" || strings.TrimSpace(m.Text) == "" {
		return
	}
	chatType := "channel"
	if !m.IsGroup {
		chatType = "dm"
	}
	msg := session.Inbound{
		Source:                "slack",
		ChatID:                m.ChatID,
		ChatType:              chatType,
		SourceMessageID:       m.MessageID,
		Timestamp:             time.Now(),
		SenderIdentifierType:  "slack_user_id",
		SenderIdentifierValue: m.SenderID,
		Content:               m.Text,
	}
	if m.ThreadID != "" {
		msg.TopicID = m.ThreadID
	}

	body, err := json.Marshal(msg)
	if err != nil {
		slog.Error("slackbridge: marshal inbound failed", "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(b.cfg.PKGraphBaseURL, "/")+"/api/v1/messages/ingest", bytes.NewReader(body))
	if err != nil {
		slog.Error("slackbridge: build ingest request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", b.cfg.PKGraphAPIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		slog.Error("slackbridge: ingest request failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Error("slackbridge: ingest rejected", "status", resp.StatusCode)
	}
}

// reminderNotification mirrors the payload internal/commitment publishes to
// the notifications topic.
type reminderNotification struct {
	CommitmentID string     `json:"commitmentId"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
}

// deliverReminders is the outbound half: every commitment reminder the
// scheduler dispatches lands on the notifications topic, and this drains
// it into a Slack message in the configured reminder channel.
func (b *bridge) deliverReminders(ctx context.Context, consumer queue.Consumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-consumer.Messages():
			if !ok {
				return
			}
			var n reminderNotification
			if err := json.Unmarshal(msg.Value, &n); err != nil {
				slog.Error("slackbridge: decode reminder notification failed", "error", err)
				continue
			}
			if strings.TrimSpace(b.cfg.ReminderChannel) == "" {
				continue
			}
			text := fmt.Sprintf("reminder: %s (%s)", n.Title, n.Status)
			if n.DueDate != nil {
				text += fmt.Sprintf(" (due %s)", n.DueDate.Format(time.RFC3339))
			}
			if _, _, err := b.slack.PostMessageContext(ctx, b.cfg.ReminderChannel, slack.MsgOptionText(text, false)); err != nil {
				slog.Error("slackbridge: reminder post failed", "commitment_id", n.CommitmentID, "error", err)
			}
		}
	}
}
