// Package main is the entry point for pkgraphd, the HTTP/RPC surface.
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
	"github.com/mityayka1/pkgraph/internal/httpapi"
	"github.com/mityayka1/pkgraph/internal/provider"
	"github.com/mityayka1/pkgraph/internal/queue"
	"github.com/mityayka1/pkgraph/internal/resolver"
	"github.com/mityayka1/pkgraph/internal/runtime"
	"github.com/mityayka1/pkgraph/internal/segmenter"
	"github.com/mityayka1/pkgraph/internal/session"
	"github.com/mityayka1/pkgraph/internal/store"
)

var withWorkers bool

var rootCmd = &cobra.Command{
	Use:   "pkgraphd",
	Short: "PKGraph HTTP/RPC surface",
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVar(&withWorkers, "with-workers", false, "also run the background schedulers (embedding retry, segmentation, extraction, commitments) in this process")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("pkgraphd exited with error", "error", err)
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

	auth := httpapi.NewAuth(st, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, cfg.Auth.BcryptCost,
		cfg.Auth.MaxLoginAttempts, time.Duration(cfg.Auth.LockoutMinutes)*time.Minute)
	res := resolver.New(st)
	dis := disambiguate.New(st, cache, time.Duration(cfg.Redis.DailyContextTTLSeconds)*time.Second)
	dd := dedupe.New(st)
	cmt := commitment.New(st, producer)
	appr := approval.New(st, cmt)
	aud := audit.New(st)
	aud.Approval, aud.AutoPromoteCount = appr, cfg.Approval.AutoPromoteCount
	seg := segmenter.New(st, oai, &segmenter.LLMBreakSuggester{Provider: oai})
	ext := extract.New(st, oai, oai, res, dis, dd)
	sess := session.New(st, res, time.Duration(cfg.Session.GapHours)*time.Hour)

	srv := httpapi.New(httpapi.Options{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		RateLimitPerMin: cfg.HTTP.RateLimitPerMin,
	}, st, auth, appr, aud, cmt, dis, res, seg, sess, &embedworker.Enqueuer{Producer: producer})

	if withWorkers {
		consumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, []string{cfg.Kafka.EmbeddingTopic})
		embed := embedworker.New(st, oai, consumer, producer)
		go func() {
			if err := embed.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("embedded embedding worker stopped", "error", err)
			}
		}()

		sched := runtime.NewScheduler(cfg, runtime.Jobs{
			Embed: embed, Segmenter: seg, Extract: ext, Commitment: cmt, Audit: aud, Approval: appr, Store: st,
		})
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("embedded scheduler stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", "error", err)
		}
	}()

	slog.Info("pkgraphd listening", "host", cfg.HTTP.Host, "port", cfg.HTTP.Port, "with_workers", withWorkers)
	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
