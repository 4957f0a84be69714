package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/diligence-cli/internal/evidence"
	"github.com/sells-group/diligence-cli/internal/extract"
	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/progress"
	"github.com/sells-group/diligence-cli/internal/resolve"
	"github.com/sells-group/diligence-cli/internal/scoring"
	"github.com/sells-group/diligence-cli/internal/store"
)

// Orchestrator drives the five-stage scoring pipeline for one company. A
// pillar's evaluation failure is absorbed (the other pillars continue, the
// pillar is marked failed); a stage-level failure fails the run while
// keeping everything written so far.
type Orchestrator struct {
	store       store.Store
	aggregator  *evidence.Aggregator
	extractor   *extract.Extractor
	resolver    *resolve.Resolver
	evaluator   *scoring.Evaluator
	scorer      *scoring.Scorer
	flags       *scoring.FlagDetector
	calculator  *scoring.Calculator
	broadcaster progress.Broadcaster
	registry    *progress.RunRegistry
	concurrency int
}

// Config wires an Orchestrator.
type Config struct {
	Store             store.Store
	Aggregator        *evidence.Aggregator
	Extractor         *extract.Extractor
	Resolver          *resolve.Resolver
	Evaluator         *scoring.Evaluator
	Broadcaster       progress.Broadcaster
	Registry          *progress.RunRegistry
	PillarConcurrency int
}

func New(cfg Config) *Orchestrator {
	b := cfg.Broadcaster
	if b == nil {
		b = progress.Nop{}
	}
	reg := cfg.Registry
	if reg == nil {
		reg = progress.NewRunRegistry()
	}
	conc := cfg.PillarConcurrency
	if conc < 1 {
		conc = 1
	}
	return &Orchestrator{
		store:       cfg.Store,
		aggregator:  cfg.Aggregator,
		extractor:   cfg.Extractor,
		resolver:    cfg.Resolver,
		evaluator:   cfg.Evaluator,
		scorer:      scoring.NewScorer(),
		flags:       scoring.NewFlagDetector(),
		calculator:  scoring.NewCalculator(),
		broadcaster: b,
		registry:    reg,
		concurrency: conc,
	}
}

// pillarResult carries one pillar's stage 3 outcome.
type pillarResult struct {
	pillar     model.Pillar
	score      *model.PillarScore
	evaluation *model.PillarEvaluation
	err        error
}

// Run executes the full pipeline and returns the run result. The returned
// run always exists in the store, in Completed or Failed state.
func (o *Orchestrator) Run(ctx context.Context, companyID, tenantID string) (*model.RunResult, error) {
	run, err := o.store.CreateRun(ctx, companyID, tenantID)
	if err != nil {
		return nil, err
	}

	if err := o.registry.Acquire(companyID, run.ID); err != nil {
		if failErr := o.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			zap.L().Error("failed to mark rejected run", zap.Error(failErr))
		}
		return nil, err
	}
	defer o.registry.Release(companyID, run.ID)

	started := time.Now()
	logger := zap.L().With(
		zap.String("company_id", companyID),
		zap.String("scoring_run_id", run.ID),
	)

	if err := o.store.UpdateRunStatus(ctx, run.ID, model.RunStatusProcessing); err != nil {
		return nil, err
	}

	t := newTracker(companyID, run.ID, o.broadcaster)

	result, runErr := o.execute(ctx, run.ID, companyID, tenantID, t, logger)
	if runErr != nil {
		logger.Error("scoring run failed", zap.Error(runErr))
		if err := o.store.FailRun(ctx, run.ID, runErr.Error()); err != nil {
			logger.Error("failed to persist run failure", zap.Error(err))
		}
		t.failed(currentStage(runErr), runErr.Error())
		return nil, runErr
	}

	result.DurationMS = time.Since(started).Milliseconds()
	if err := o.store.CompleteRun(ctx, run.ID, result); err != nil {
		return nil, err
	}
	t.completed(result)
	logger.Info("scoring run completed",
		zap.Int("overall_score", result.BDE.OverallScore),
		zap.Int("flags", len(result.Flags)),
		zap.Int64("duration_ms", result.DurationMS),
	)
	return result, nil
}

// stageError tags a failure with the stage it occurred in.
type stageError struct {
	stage model.Stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func currentStage(err error) model.Stage {
	var se *stageError
	if eris.As(err, &se) {
		return se.stage
	}
	return model.StageExtractingMetrics
}

func (o *Orchestrator) execute(ctx context.Context, runID, companyID, tenantID string, t *tracker, logger *zap.Logger) (*model.RunResult, error) {
	// Stage 1: extract metric observations from each pillar's evidence.
	t.stage(model.StageExtractingMetrics, 0, "")
	pillars := model.ScoringPillars()
	for i, pillar := range pillars {
		if err := o.extractPillar(ctx, runID, companyID, tenantID, pillar); err != nil {
			return nil, &stageError{stage: model.StageExtractingMetrics, err: err}
		}
		t.stage(model.StageExtractingMetrics, float64(i+1)/float64(len(pillars)), pillar)
	}

	// Stage 2: aggregate evidence, resolved metrics, and coverage per pillar.
	t.stage(model.StageAggregatingPillarData, 0, "")
	pillarData := make(map[model.Pillar]*model.PillarData, len(pillars))
	for i, pillar := range pillars {
		data, err := o.aggregator.Aggregate(ctx, companyID, runID, pillar)
		if err != nil {
			return nil, &stageError{stage: model.StageAggregatingPillarData, err: err}
		}
		pillarData[pillar] = data
		t.stage(model.StageAggregatingPillarData, float64(i+1)/float64(len(pillars)), pillar)
	}

	// Stage 3: evaluate and score each pillar. Failures are absorbed.
	scores, evaluations, failedPillars, err := o.evaluatePillars(ctx, runID, tenantID, pillarData, t, logger)
	if err != nil {
		return nil, &stageError{stage: model.StageEvaluatingPillars, err: err}
	}

	// Stage 4: deterministic flag rules over the scored pillars.
	t.stage(model.StageDetectingFlags, 0, "")
	flags := o.flags.Detect(companyID, tenantID, runID, scores, evaluations)
	for _, f := range flags {
		if err := o.store.InsertFlag(ctx, f); err != nil {
			return nil, &stageError{stage: model.StageDetectingFlags, err: err}
		}
	}
	t.stage(model.StageDetectingFlags, 1.0, "")

	// Stage 5: the terminal BDE score.
	t.stage(model.StageCalculatingBDEScore, 0, "")
	bde := o.calculator.Calculate(companyID, tenantID, runID, scores, flags)
	if err := o.store.InsertBDEScore(ctx, bde); err != nil {
		return nil, &stageError{stage: model.StageCalculatingBDEScore, err: err}
	}

	return &model.RunResult{
		BDE:           bde,
		PillarScores:  scores,
		Flags:         flags,
		FailedPillars: failedPillars,
	}, nil
}

func (o *Orchestrator) extractPillar(ctx context.Context, runID, companyID, tenantID string, pillar model.Pillar) error {
	data, err := o.aggregator.Aggregate(ctx, companyID, runID, pillar)
	if err != nil {
		return err
	}

	observations, err := o.extractor.Extract(ctx, companyID, pillar, data.Evidence)
	if err != nil {
		return err
	}

	for _, obs := range observations {
		if _, err := o.resolver.Record(ctx, companyID, tenantID, runID, obs); err != nil {
			return err
		}
	}
	return nil
}

// evaluatePillars runs stage 3, optionally in parallel. All store writes
// complete before it returns so stage 4 reads a settled state.
func (o *Orchestrator) evaluatePillars(ctx context.Context, runID, tenantID string, pillarData map[model.Pillar]*model.PillarData, t *tracker, logger *zap.Logger) ([]model.PillarScore, map[model.Pillar]*model.PillarEvaluation, []model.Pillar, error) {
	pillars := model.ScoringPillars()
	results := make([]pillarResult, len(pillars))

	var mu sync.Mutex // serializes store writes across pillar goroutines
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, pillar := range pillars {
		g.Go(func() error {
			t.pillar(pillar, model.PillarProcessing, nil, nil)
			res := o.evaluatePillar(gctx, runID, tenantID, pillarData[pillar], &mu)
			results[i] = res

			if res.err != nil {
				logger.Warn("pillar evaluation failed, continuing",
					zap.String("pillar", string(pillar)), zap.Error(res.err))
				t.pillar(pillar, model.PillarFailed, nil, nil)
				return nil
			}
			health := res.score.HealthStatus
			t.pillar(pillar, model.PillarCompleted, &res.score.Score, &health)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	var scores []model.PillarScore
	evaluations := make(map[model.Pillar]*model.PillarEvaluation)
	var failed []model.Pillar
	for _, res := range results {
		if res.err != nil {
			failed = append(failed, res.pillar)
			continue
		}
		scores = append(scores, *res.score)
		evaluations[res.pillar] = res.evaluation
	}
	return scores, evaluations, failed, nil
}

func (o *Orchestrator) evaluatePillar(ctx context.Context, runID, tenantID string, data *model.PillarData, mu *sync.Mutex) pillarResult {
	res := pillarResult{pillar: data.Pillar}

	ev, err := o.evaluator.Evaluate(ctx, tenantID, runID, data)
	if err != nil {
		res.err = err
		return res
	}

	score := o.scorer.Score(ev, data.Coverage)

	mu.Lock()
	defer mu.Unlock()
	if err := o.store.InsertEvaluation(ctx, *ev); err != nil {
		res.err = err
		return res
	}
	if err := o.store.UpsertPillarScore(ctx, score); err != nil {
		res.err = err
		return res
	}

	res.evaluation = ev
	res.score = &score
	return res
}
