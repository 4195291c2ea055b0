package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"goldpipe/pkg/core/content"
	"goldpipe/pkg/core/llm"
	"goldpipe/pkg/core/preset"
	"goldpipe/pkg/core/run"
	"goldpipe/pkg/core/sink"
	"goldpipe/pkg/core/source"
	"goldpipe/pkg/core/store"
)

func main() {
	presetPath := flag.String("preset", "", "path to the preset YAML file")
	providersPath := flag.String("providers", "configs/providers.yaml", "path to the provider configuration")
	contentDir := flag.String("content", "content", "directory of content piece JSON files")
	cacheDir := flag.String("cache", "", "stage cache directory when no database is configured")
	useDB := flag.Bool("db", false, "persist to Postgres (requires DATABASE_URL)")
	flag.Parse()

	if *presetPath == "" {
		log.Fatal("Error: -preset is required.")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache run.ResultCache
	var repo run.Repo
	var dbSink sink.Sink
	if *useDB {
		if err := store.InitDB(ctx); err != nil {
			logger.Fatal("database initialization failed", zap.Error(err))
		}
		defer store.Close()
		cache, err = store.NewStageCache(store.GetPool(), "")
		if err != nil {
			logger.Fatal("stage cache initialization failed", zap.Error(err))
		}
		repo = store.NewRunRepo(store.GetPool())
		dbSink = sink.NewPGSink(store.GetPool())
	} else {
		cache, err = store.NewStageCache(nil, *cacheDir)
		if err != nil {
			logger.Fatal("stage cache initialization failed", zap.Error(err))
		}
		repo = store.NewMemoryRepo()
	}

	cs := content.NewMemoryStore()
	loaded, err := content.LoadFromDirectory(ctx, cs, *contentDir)
	if err != nil {
		logger.Fatal("failed to load content pieces", zap.Error(err))
	}
	logger.Info("content library loaded", zap.Int("pieces", loaded))

	p, err := preset.Load(*presetPath)
	if err != nil {
		logger.Fatal("failed to load preset", zap.Error(err))
	}

	mgrCfg, err := llm.LoadManagerConfig(*providersPath)
	if err != nil {
		logger.Fatal("failed to load provider config", zap.Error(err))
	}

	docs, err := source.NewResolver(cs).Fetch(ctx, p.Input)
	if err != nil {
		logger.Fatal("failed to fetch input documents", zap.Error(err))
	}

	orch := run.NewOrchestrator(cs, llm.NewManager(mgrCfg), cache, repo, sink.NewDispatcher(dbSink), logger)
	r, err := orch.ExecuteRun(ctx, p, docs)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	fmt.Printf("Run %s finished: %s\n", r.ID, r.Status)
	for _, ds := range r.Documents {
		state := "ok"
		switch {
		case ds.Failed:
			state = "failed: " + ds.Error
		case ds.Degraded:
			state = "degraded"
		}
		fmt.Printf("  %-30s %s (%d stage results)\n", ds.DocumentID, state, len(run.SortedFingerprints(ds)))
	}
	if r.Status != run.StatusCompleted {
		os.Exit(1)
	}
}
