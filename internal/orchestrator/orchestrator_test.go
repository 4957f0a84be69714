package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/evidence"
	"github.com/sells-group/diligence-cli/internal/extract"
	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/progress"
	"github.com/sells-group/diligence-cli/internal/registry"
	"github.com/sells-group/diligence-cli/internal/resilience"
	"github.com/sells-group/diligence-cli/internal/resolve"
	"github.com/sells-group/diligence-cli/internal/scoring"
	"github.com/sells-group/diligence-cli/internal/store"
	"github.com/sells-group/diligence-cli/pkg/anthropic"
)

// memStore is a full in-memory Store for pipeline tests.
type memStore struct {
	store.Store
	mu          sync.Mutex
	runs        map[string]*model.ScoringRun
	evidence    map[model.Pillar][]model.EvidenceChunk
	metrics     map[string]*model.Metric
	metricOrder []string
	evaluations []model.PillarEvaluation
	scores      map[model.Pillar]model.PillarScore
	flags       []model.Flag
	bde         *model.BDEScore
}

func newMemStore() *memStore {
	return &memStore{
		runs:     make(map[string]*model.ScoringRun),
		evidence: make(map[model.Pillar][]model.EvidenceChunk),
		metrics:  make(map[string]*model.Metric),
		scores:   make(map[model.Pillar]model.PillarScore),
	}
}

func (s *memStore) CreateRun(_ context.Context, companyID, tenantID string) (*model.ScoringRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := &model.ScoringRun{
		ID: uuid.New().String(), CompanyID: companyID, TenantID: tenantID,
		Status: model.RunStatusQueued, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID].Status = status
	return nil
}

func (s *memStore) FailRun(_ context.Context, runID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID].Status = model.RunStatusFailed
	s.runs[runID].ErrorMessage = errMsg
	return nil
}

func (s *memStore) CompleteRun(_ context.Context, runID string, result *model.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID].Status = model.RunStatusCompleted
	s.runs[runID].Result = result
	return nil
}

func (s *memStore) ListEvidence(_ context.Context, _ string, pillar model.Pillar) ([]model.EvidenceChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evidence[pillar], nil
}

func (s *memStore) InsertMetric(_ context.Context, m model.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := m
	s.metrics[m.ID] = &cp
	s.metricOrder = append(s.metricOrder, m.ID)
	return nil
}

func (s *memStore) SupersedeMetric(_ context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[oldID].IsCurrent = false
	s.metrics[oldID].SupersededBy = newID
	return nil
}

func (s *memStore) MarkMetricNeedsReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[id].NeedsAnalystReview = true
	return nil
}

func (s *memStore) CurrentMetricsByName(_ context.Context, _, _, name string) ([]model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Metric
	for _, id := range s.metricOrder {
		if m := s.metrics[id]; m.Name == name && m.IsCurrent {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) CurrentMetrics(_ context.Context, _, _ string) ([]model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Metric
	for _, id := range s.metricOrder {
		if m := s.metrics[id]; m.IsCurrent {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) InsertEvaluation(_ context.Context, ev model.PillarEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, ev)
	return nil
}

func (s *memStore) UpsertPillarScore(_ context.Context, ps model.PillarScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[ps.Pillar] = ps
	return nil
}

func (s *memStore) InsertFlag(_ context.Context, f model.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, f)
	return nil
}

func (s *memStore) InsertBDEScore(_ context.Context, sc model.BDEScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bde = &sc
	return nil
}

// scriptedClient answers extraction and evaluation requests from the same
// pipeline run. Pillars listed in failEval get garbage evaluations.
type scriptedClient struct {
	failEval map[string]bool
}

func (c *scriptedClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	prompt := req.Messages[0].Content
	var text string
	switch {
	case strings.Contains(prompt, "Extract metrics"):
		text = `{"metrics":[{"name":"arr","value":2400000,"confidence":0.9,"source_chunks":["chunk_1"]}]}`
		if !strings.Contains(prompt, "Financial Health") {
			text = `{"metrics":[]}`
		}
	default:
		for label := range c.failEval {
			if strings.Contains(prompt, label) {
				return &anthropic.MessageResponse{
					Content: []anthropic.ContentBlock{{Type: "text", Text: "no json here"}},
				}, nil
			}
		}
		text = `{"meets_green_criteria":{"met":true,"strength":"moderate"},"meets_yellow_criteria":{"met":false},"fails_red_criteria":{"met":false},"key_findings":["solid"],"confidence":0.8}`
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

type captureBroadcaster struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (c *captureBroadcaster) Publish(e model.ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureBroadcaster) all() []model.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ProgressEvent(nil), c.events...)
}

func newTestOrchestrator(s *memStore, client anthropic.Client, b progress.Broadcaster, reg *progress.RunRegistry) *Orchestrator {
	metricReg := registry.Default()
	retry := resilience.RetryConfig{MaxAttempts: 1}
	return New(Config{
		Store:             s,
		Aggregator:        evidence.NewAggregator(s, metricReg, nil, evidence.DefaultSelection()),
		Extractor:         extract.NewExtractor(client, metricReg, "test-model", retry),
		Resolver:          resolve.NewResolver(s),
		Evaluator:         scoring.NewEvaluator(client, "test-model", retry),
		Broadcaster:       b,
		Registry:          reg,
		PillarConcurrency: 2,
	})
}

func seedEvidence(s *memStore) {
	for _, p := range model.ScoringPillars() {
		s.evidence[p] = []model.EvidenceChunk{{
			ID: uuid.New().String(), CompanyID: "acme", Pillar: p,
			SourceType: model.SourceDocument, Confidence: 0.9,
			Text: "evidence for " + string(p),
		}}
	}
}

func TestRun_CompletesAllStages(t *testing.T) {
	s := newMemStore()
	seedEvidence(s)
	b := &captureBroadcaster{}
	o := newTestOrchestrator(s, &scriptedClient{}, b, nil)

	result, err := o.Run(context.Background(), "acme", "t1")
	require.NoError(t, err)

	assert.Len(t, result.PillarScores, 8)
	assert.Empty(t, result.FailedPillars)
	assert.NotZero(t, result.BDE.OverallScore)
	require.NotNil(t, s.bde)

	// The extracted arr metric went through resolution.
	metrics, err := s.CurrentMetricsByName(context.Background(), "acme", "", "arr")
	require.NoError(t, err)
	assert.Len(t, metrics, 1)

	// Exactly one run, completed, with the result attached.
	require.Len(t, s.runs, 1)
	for _, run := range s.runs {
		assert.Equal(t, model.RunStatusCompleted, run.Status)
		require.NotNil(t, run.Result)
	}

	// Terminal event carries the payload.
	events := b.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.RunStatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)
	require.NotNil(t, last.Result)
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	s := newMemStore()
	seedEvidence(s)
	b := &captureBroadcaster{}
	o := newTestOrchestrator(s, &scriptedClient{}, b, nil)

	_, err := o.Run(context.Background(), "acme", "t1")
	require.NoError(t, err)

	prev := -1
	for _, e := range b.all() {
		assert.GreaterOrEqual(t, e.Progress, prev, "progress must never move backwards")
		prev = e.Progress
	}
}

func TestRun_PillarFailureAbsorbed(t *testing.T) {
	s := newMemStore()
	seedEvidence(s)
	b := &captureBroadcaster{}
	client := &scriptedClient{failEval: map[string]bool{"Customer Health": true}}
	o := newTestOrchestrator(s, client, b, nil)

	result, err := o.Run(context.Background(), "acme", "t1")
	require.NoError(t, err, "one failed pillar must not fail the run")

	assert.Len(t, result.PillarScores, 7)
	require.Len(t, result.FailedPillars, 1)
	assert.Equal(t, model.PillarCustomerHealth, result.FailedPillars[0])

	// The failed pillar is reported failed in the progress map.
	events := b.all()
	last := events[len(events)-1]
	assert.Equal(t, model.PillarFailed, last.PillarProgress[model.PillarCustomerHealth].Status)
	assert.Equal(t, model.PillarCompleted, last.PillarProgress[model.PillarFinancialHealth].Status)
}

func TestRun_ConcurrentRunRejected(t *testing.T) {
	s := newMemStore()
	seedEvidence(s)
	reg := progress.NewRunRegistry()
	require.NoError(t, reg.Acquire("acme", "existing-run"))

	o := newTestOrchestrator(s, &scriptedClient{}, nil, reg)

	_, err := o.Run(context.Background(), "acme", "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already active")

	// The rejected run is recorded as failed, not left queued.
	for _, run := range s.runs {
		assert.Equal(t, model.RunStatusFailed, run.Status)
	}
}

func TestRun_RegistryReleasedAfterCompletion(t *testing.T) {
	s := newMemStore()
	seedEvidence(s)
	reg := progress.NewRunRegistry()
	o := newTestOrchestrator(s, &scriptedClient{}, nil, reg)

	_, err := o.Run(context.Background(), "acme", "t1")
	require.NoError(t, err)

	_, active := reg.ActiveRun("acme")
	assert.False(t, active, "registry must release the company after the run")
}

func TestRun_AllPillarsFailedStillCompletes(t *testing.T) {
	s := newMemStore()
	seedEvidence(s)
	fail := make(map[string]bool)
	for _, p := range model.ScoringPillars() {
		fail[p.Label()] = true
	}
	o := newTestOrchestrator(s, &scriptedClient{failEval: fail}, nil, nil)

	result, err := o.Run(context.Background(), "acme", "t1")
	require.NoError(t, err)

	assert.Empty(t, result.PillarScores)
	assert.Len(t, result.FailedPillars, 8)
	assert.Equal(t, 0, result.BDE.OverallScore)
	assert.Equal(t, model.VerdictPass, result.BDE.Recommendation.Verdict)
}
