// Package main is the entry point for pkgraph-worker: the standalone
// embedding worker, extraction pipeline runner, and
// commitment scheduler, for horizontal scaling independent of the
// HTTP tier.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mityayka1/pkgraph/internal/approval"
	"github.com/mityayka1/pkgraph/internal/audit"
	"github.com/mityayka1/pkgraph/internal/commitment"
	"github.com/mityayka1/pkgraph/internal/config"
	"github.com/mityayka1/pkgraph/internal/dedupe"
	"github.com/mityayka1/pkgraph/internal/disambiguate"
	"github.com/mityayka1/pkgraph/internal/embedworker"
	"github.com/mityayka1/pkgraph/internal/extract"
	"github.com/mityayka1/pkgraph/internal/provider"
	"github.com/mityayka1/pkgraph/internal/queue"
	"github.com/mityayka1/pkgraph/internal/resolver"
	"github.com/mityayka1/pkgraph/internal/runtime"
	"github.com/mityayka1/pkgraph/internal/segmenter"
	"github.com/mityayka1/pkgraph/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "pkgraph-worker",
	Short: "PKGraph background pipeline worker",
	RunE:  run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("pkgraph-worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	runtime.InitLogging(cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		return err
	}
	defer st.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return err
	}
	cache := redis.NewClient(redisOpts)
	defer cache.Close()

	oai := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.ChatModel)
	producer := queue.NewKafkaProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	consumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, []string{cfg.Kafka.EmbeddingTopic})

	res := resolver.New(st)
	dis := disambiguate.New(st, cache, time.Duration(cfg.Redis.DailyContextTTLSeconds)*time.Second)
	dd := dedupe.New(st)
	cmt := commitment.New(st, producer)
	appr := approval.New(st, cmt)
	aud := audit.New(st)
	aud.Approval, aud.AutoPromoteCount = appr, cfg.Approval.AutoPromoteCount
	seg := segmenter.New(st, oai, &segmenter.LLMBreakSuggester{Provider: oai})
	ext := extract.New(st, oai, oai, res, dis, dd)
	embed := embedworker.New(st, oai, consumer, producer)

	sched := runtime.NewScheduler(cfg, runtime.Jobs{
		Embed: embed, Segmenter: seg, Extract: ext, Commitment: cmt, Audit: aud, Approval: appr, Store: st,
	})

	go func() {
		if err := embed.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("embedding worker consumer stopped", "error", err)
		}
	}()

	slog.Info("pkgraph-worker started")
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
