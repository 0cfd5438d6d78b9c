package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexviet/bidrag/internal/cache"
	"github.com/lexviet/bidrag/internal/config"
	"github.com/lexviet/bidrag/internal/embeddings"
	"github.com/lexviet/bidrag/internal/llm"
	"github.com/lexviet/bidrag/internal/logging"
	"github.com/lexviet/bidrag/internal/orchestrator"
	"github.com/lexviet/bidrag/internal/registry"
	"github.com/lexviet/bidrag/internal/rerank"
	"github.com/lexviet/bidrag/internal/telemetry"
	"github.com/lexviet/bidrag/internal/vectorstore"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "bidrag",
		Short:         "Vietnamese procurement-law question answering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(newAskCmd(&configPath))
	root.AddCommand(newHealthCmd(&configPath))
	return root
}

func newAskCmd(configPath *string) *cobra.Command {
	var (
		mode         string
		statusFilter string
		summary      string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, logger, shutdown, err := buildService(ctx, *configPath)
			if err != nil {
				return err
			}
			defer shutdown(ctx)

			req := orchestrator.Request{
				Query:               strings.Join(args, " "),
				Mode:                mode,
				ConversationSummary: summary,
			}
			if statusFilter != "" {
				req.Filter = vectorstore.NewFilter().Where("status", statusFilter)
			}

			answer, err := svc.Ask(ctx, req)
			if err != nil {
				if oe, ok := orchestrator.AsError(err); ok {
					logger.Error("ask failed",
						zap.String("kind", string(oe.Kind)),
						zap.String("stage", oe.Stage))
				}
				return err
			}
			return printJSON(answer)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "pipeline mode (fast, balanced, quality, adaptive)")
	cmd.Flags().StringVar(&statusFilter, "status", "", "override the status filter (active, expired, superseded)")
	cmd.Flags().StringVar(&summary, "summary", "", "conversation summary from earlier turns")
	return cmd
}

func newHealthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report model, store, and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, shutdown, err := buildService(ctx, *configPath)
			if err != nil {
				return err
			}
			defer shutdown(ctx)
			return printJSON(svc.Health(ctx))
		},
	}
}

// buildService wires configuration, logging, telemetry, the store, the
// cache tier, the model registry, and the orchestrator.
func buildService(ctx context.Context, configPath string) (*orchestrator.Service, *zap.Logger, func(context.Context), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}

	traceShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := vectorstore.New(ctx, vectorstore.Config{
		DSN:   cfg.Store.DSN,
		Table: cfg.Store.Table,
	}, logger.Named("vectorstore"))
	if err != nil {
		return nil, nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, L2 cache degraded", zap.Error(err))
	}

	tier, err := cache.New(cfg.Cache.L1Capacity, rdb, logger.Named("cache"))
	if err != nil {
		return nil, nil, nil, err
	}

	chat, err := llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	reg := registry.New(registry.Options{
		RerankerLoader: func() (rerank.Reranker, error) {
			return rerank.NewCrossEncoder(rerank.CrossEncoderConfig{
				BaseURL:   cfg.Reranker.ServiceURL,
				Model:     cfg.Reranker.Model,
				BatchSize: cfg.Reranker.BatchSize,
				Timeout:   cfg.Reranker.Timeout.Std(),
			}, logger.Named("rerank"))
		},
		EmbedderLoader: func() (embeddings.Embedder, error) {
			provider, err := embeddings.NewProvider(embeddings.Config{
				BaseURL:   cfg.Embeddings.BaseURL,
				Model:     cfg.Embeddings.Model,
				APIKey:    cfg.Embeddings.APIKey,
				Dimension: cfg.Embeddings.Dimension,
			})
			if err != nil {
				return nil, err
			}
			return embeddings.NewCachedEmbedder(provider, cfg.Embeddings.CacheSize), nil
		},
		FailureBackoff: cfg.Registry.FailureBackoff.Std(),
	}, logger.Named("registry"))

	svc, err := orchestrator.New(ctx, cfg, orchestrator.Options{
		Store:    store,
		Cache:    tier,
		Registry: reg,
		Chat:     chat,
	}, logger.Named("pipeline"))
	if err != nil {
		return nil, nil, nil, err
	}

	shutdown := func(ctx context.Context) {
		if err := reg.Close(); err != nil {
			logger.Warn("registry close failed", zap.Error(err))
		}
		store.Close()
		rdb.Close()
		traceShutdown(ctx)
		logger.Sync()
	}
	return svc, logger, shutdown, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
