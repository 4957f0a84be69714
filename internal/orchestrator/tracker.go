package orchestrator

import (
	"sync"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/progress"
)

// stageSpan maps each stage onto its slice of the overall 0-100 progress
// bar. Extraction and evaluation dominate the wall-clock time and get the
// widest spans.
var stageSpan = map[model.Stage][2]int{
	model.StageExtractingMetrics:     {0, 20},
	model.StageAggregatingPillarData: {20, 30},
	model.StageEvaluatingPillars:     {30, 70},
	model.StageDetectingFlags:        {70, 85},
	model.StageCalculatingBDEScore:   {85, 100},
}

// tracker emits ordered progress events for one run. The overall percent is
// monotonic: a recomputation that lands lower than what was already reported
// is clamped up.
type tracker struct {
	mu          sync.Mutex
	companyID   string
	runID       string
	broadcaster progress.Broadcaster
	highWater   int
	pillars     map[model.Pillar]model.PillarProgress
}

func newTracker(companyID, runID string, b progress.Broadcaster) *tracker {
	t := &tracker{
		companyID:   companyID,
		runID:       runID,
		broadcaster: b,
		pillars:     make(map[model.Pillar]model.PillarProgress),
	}
	for _, p := range model.ScoringPillars() {
		t.pillars[p] = model.PillarProgress{Status: model.PillarPending}
	}
	return t
}

// stage reports progress within a stage; fraction is the completed share of
// the stage in [0,1].
func (t *tracker) stage(stage model.Stage, fraction float64, currentPillar model.Pillar) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(stage, fraction, model.RunStatusProcessing, currentPillar, "", nil)
}

// pillar updates a pillar's sub-state and re-emits stage 3 progress based on
// how many pillars have finished.
func (t *tracker) pillar(p model.Pillar, status model.PillarStatus, score *float64, health *model.HealthStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pp := t.pillars[p]
	pp.Status = status
	switch status {
	case model.PillarCompleted, model.PillarFailed:
		pp.Progress = 100
	case model.PillarProcessing:
		pp.Progress = 50
	}
	pp.Score = score
	pp.HealthStatus = health
	t.pillars[p] = pp

	done := 0
	for _, entry := range t.pillars {
		if entry.Status == model.PillarCompleted || entry.Status == model.PillarFailed {
			done++
		}
	}
	fraction := float64(done) / float64(len(t.pillars))
	t.emit(model.StageEvaluatingPillars, fraction, model.RunStatusProcessing, p, "", nil)
}

// failed emits the terminal failure event.
func (t *tracker) failed(stage model.Stage, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(stage, 0, model.RunStatusFailed, "", errMsg, nil)
}

// completed emits the terminal success event with the full result payload.
func (t *tracker) completed(result *model.RunResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(model.StageCalculatingBDEScore, 1.0, model.RunStatusCompleted, "", "", result)
}

func (t *tracker) emit(stage model.Stage, fraction float64, status model.RunStatus, currentPillar model.Pillar, errMsg string, result *model.RunResult) {
	span := stageSpan[stage]
	percent := span[0] + int(float64(span[1]-span[0])*fraction)
	if percent < t.highWater {
		percent = t.highWater
	}
	t.highWater = percent

	snapshot := make(map[model.Pillar]model.PillarProgress, len(t.pillars))
	for k, v := range t.pillars {
		snapshot[k] = v
	}

	t.broadcaster.Publish(model.ProgressEvent{
		CompanyID:      t.companyID,
		ScoringRunID:   t.runID,
		Stage:          stage,
		StageName:      stage.Name(),
		Progress:       percent,
		Status:         status,
		CurrentPillar:  currentPillar,
		PillarProgress: snapshot,
		ErrorMessage:   errMsg,
		Result:         result,
	})
}
