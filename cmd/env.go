package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/diligence-cli/internal/evidence"
	"github.com/sells-group/diligence-cli/internal/extract"
	"github.com/sells-group/diligence-cli/internal/orchestrator"
	"github.com/sells-group/diligence-cli/internal/progress"
	"github.com/sells-group/diligence-cli/internal/registry"
	"github.com/sells-group/diligence-cli/internal/resilience"
	"github.com/sells-group/diligence-cli/internal/resolve"
	"github.com/sells-group/diligence-cli/internal/scoring"
	"github.com/sells-group/diligence-cli/internal/store"
	"github.com/sells-group/diligence-cli/pkg/anthropic"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite":
		path := cfg.Store.DatabaseURL
		if path == "" {
			path = "diligence.db"
		}
		return store.NewSQLite(path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// pipelineEnv bundles the wired pipeline for commands that run scoring.
type pipelineEnv struct {
	store        store.Store
	orchestrator *orchestrator.Orchestrator
	aggregator   *evidence.Aggregator
	registry     *progress.RunRegistry
	metricReg    *registry.MetricRegistry
}

func (e *pipelineEnv) Close() {
	_ = e.store.Close()
}

// initPipeline wires the full scoring pipeline from configuration.
// broadcaster may be nil for CLI runs.
func initPipeline(ctx context.Context, broadcaster progress.Broadcaster) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	metricReg := registry.Default()
	var checklist registry.Checklist
	if cfg.Scoring.ChecklistPath != "" {
		checklist, err = registry.LoadChecklistFromFile(cfg.Scoring.ChecklistPath)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	client := anthropic.NewRateLimited(
		anthropic.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.RequestsPerMin,
	)
	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.Anthropic.MaxRetries,
		InitialBackoff: time.Second,
		OnRetry:        resilience.RetryLogger("anthropic", "create_message"),
	}

	sel := evidence.SelectionConfig{
		HighConfidence: cfg.Evidence.HighConfidence,
		LowConfidence:  cfg.Evidence.LowConfidence,
		MinChunks:      cfg.Evidence.MinChunks,
	}
	agg := evidence.NewAggregator(st, metricReg, checklist, sel)
	runReg := progress.NewRunRegistry()

	orch := orchestrator.New(orchestrator.Config{
		Store:             st,
		Aggregator:        agg,
		Extractor:         extract.NewExtractor(client, metricReg, cfg.Anthropic.ExtractionModel, retry),
		Resolver:          resolve.NewResolver(st),
		Evaluator:         scoring.NewEvaluator(client, cfg.Anthropic.EvaluationModel, retry),
		Broadcaster:       broadcaster,
		Registry:          runReg,
		PillarConcurrency: cfg.Scoring.PillarConcurrency,
	})

	return &pipelineEnv{
		store:        st,
		orchestrator: orch,
		aggregator:   agg,
		registry:     runReg,
		metricReg:    metricReg,
	}, nil
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
