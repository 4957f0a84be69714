package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/resilience"
	"github.com/sells-group/diligence-cli/pkg/anthropic"
)

// Evaluator produces the qualitative LLM assessment for one pillar. Unlike
// extraction, an unparseable response here is an error: the caller absorbs
// it as a per-pillar failure and the remaining pillars continue.
type Evaluator struct {
	client anthropic.Client
	model  string
	retry  resilience.RetryConfig
}

func NewEvaluator(client anthropic.Client, llmModel string, retry resilience.RetryConfig) *Evaluator {
	return &Evaluator{client: client, model: llmModel, retry: retry}
}

// wireEvaluation is the JSON contract for the evaluation response.
type wireEvaluation struct {
	MeetsGreen    wireCriterion `json:"meets_green_criteria"`
	MeetsYellow   wireCriterion `json:"meets_yellow_criteria"`
	FailsRed      wireCriterion `json:"fails_red_criteria"`
	KeyFindings   []string      `json:"key_findings"`
	Risks         []string      `json:"risks"`
	DataGaps      []string      `json:"data_gaps"`
	LLMConfidence float64       `json:"confidence"`
}

type wireCriterion struct {
	Met      bool     `json:"met"`
	Strength string   `json:"strength,omitempty"`
	Evidence []string `json:"evidence,omitempty"`
}

// Evaluate assesses one pillar from its aggregated data.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID, runID string, data *model.PillarData) (*model.PillarEvaluation, error) {
	req := anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 4096,
		System:    anthropic.BuildCachedSystemBlocks(evaluationSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildEvaluationPrompt(data)},
		},
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	var wire wireEvaluation
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &wire); err != nil {
		return nil, eris.Wrapf(err, "scoring: unparseable evaluation for pillar %s", data.Pillar)
	}

	return &model.PillarEvaluation{
		ID:            uuid.New().String(),
		CompanyID:     data.CompanyID,
		TenantID:      tenantID,
		ScoringRunID:  runID,
		Pillar:        data.Pillar,
		Green:         model.CriterionAssessment(wire.MeetsGreen),
		Yellow:        model.CriterionAssessment(wire.MeetsYellow),
		Red:           model.CriterionAssessment(wire.FailsRed),
		KeyFindings:   wire.KeyFindings,
		Risks:         wire.Risks,
		DataGaps:      wire.DataGaps,
		LLMConfidence: clamp(wire.LLMConfidence, 0, 1),
		IsCurrent:     true,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func buildEvaluationPrompt(data *model.PillarData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Assess the %s dimension of this company.\n", data.Pillar.Label())
	fmt.Fprintf(&b, "\nData coverage: %d%% (%d of %d required points present)\n",
		data.Coverage.Percent, len(data.Coverage.PresentPoints), data.Coverage.RequiredCount)
	if len(data.Coverage.MissingPoints) > 0 {
		fmt.Fprintf(&b, "Missing data points: %s\n", strings.Join(data.Coverage.MissingPoints, ", "))
	}

	b.WriteString("\nResolved metrics:\n")
	if len(data.Metrics) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range data.Metrics {
		fmt.Fprintf(&b, "- %s = %s", m.Name, m.Value.Display())
		if m.Unit != "" {
			fmt.Fprintf(&b, " %s", m.Unit)
		}
		if m.Period != "" {
			fmt.Fprintf(&b, " (%s)", m.Period)
		}
		fmt.Fprintf(&b, " [source=%s confidence=%d", m.SourceType, m.Confidence)
		if m.Corroborated {
			b.WriteString(" corroborated")
		}
		if m.NeedsAnalystReview {
			b.WriteString(" disputed")
		}
		b.WriteString("]\n")
	}

	b.WriteString("\nEvidence:\n")
	for i, c := range data.Evidence {
		fmt.Fprintf(&b, "\n[chunk_%d] (source=%s)\n%s\n", i+1, c.SourceType, c.Text)
	}
	return b.String()
}

func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if after, found := strings.CutPrefix(s, "```json"); found {
		s = after
	} else if after, found := strings.CutPrefix(s, "```"); found {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

const evaluationSystemPrompt = `You are a due-diligence analyst assessing one dimension of a software company against traffic-light criteria.

Green criteria describe a healthy, acquisition-ready business on this dimension. Yellow criteria describe workable weaknesses. Red criteria describe conditions that materially threaten an acquisition.

Respond with strict JSON only:
{"meets_green_criteria": {"met": bool, "strength": "weak|moderate|strong", "evidence": [...]},
 "meets_yellow_criteria": {...}, "fails_red_criteria": {...},
 "key_findings": [...], "risks": [...], "data_gaps": [...], "confidence": 0.0-1.0}

Ground every judgement in the supplied metrics and evidence. List data gaps explicitly rather than guessing.`
