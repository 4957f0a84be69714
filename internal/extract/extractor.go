package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/registry"
	"github.com/sells-group/diligence-cli/internal/resilience"
	"github.com/sells-group/diligence-cli/pkg/anthropic"
)

const corroborationBoost = 0.08

// Extractor turns pillar evidence into typed metric observations via the
// LLM. A garbled model response yields an empty observation list, never an
// error; extraction noise must not kill a scoring run.
type Extractor struct {
	client   anthropic.Client
	registry *registry.MetricRegistry
	model    string
	retry    resilience.RetryConfig
}

// NewExtractor wires an extractor against the given model.
func NewExtractor(client anthropic.Client, reg *registry.MetricRegistry, llmModel string, retry resilience.RetryConfig) *Extractor {
	return &Extractor{client: client, registry: reg, model: llmModel, retry: retry}
}

// wireMetric is the JSON shape the model is instructed to emit.
type wireMetric struct {
	Name         string   `json:"name"`
	Value        any      `json:"value"`
	Unit         string   `json:"unit,omitempty"`
	Period       string   `json:"period,omitempty"`
	AsOfDate     string   `json:"as_of_date,omitempty"`
	Confidence   float64  `json:"confidence"`
	SourceChunks []string `json:"source_chunks"`
	Context      string   `json:"context,omitempty"`
}

type wireResponse struct {
	Metrics []wireMetric `json:"metrics"`
}

// Extract requests metric observations for one pillar's evidence set.
func (e *Extractor) Extract(ctx context.Context, companyID string, pillar model.Pillar, evidence []model.EvidenceChunk) ([]model.MetricObservation, error) {
	if len(evidence) == 0 {
		return nil, nil
	}

	req := anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 8192,
		System:    anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: e.buildPrompt(pillar, evidence)},
		},
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	return e.parseResponse(companyID, pillar, resp.Text(), evidence), nil
}

func (e *Extractor) buildPrompt(pillar model.Pillar, evidence []model.EvidenceChunk) string {
	var b strings.Builder

	b.WriteString("Extract metrics for the ")
	b.WriteString(pillar.Label())
	b.WriteString(" dimension.\n\nKnown metrics for this dimension:\n")
	for _, def := range e.registry.ForPillar(pillar) {
		fmt.Fprintf(&b, "- %s (%s", def.Name, def.Type)
		if def.Unit != "" {
			fmt.Fprintf(&b, ", %s", def.Unit)
		}
		fmt.Fprintf(&b, "): %s\n", def.Description)
	}

	b.WriteString("\nEvidence:\n")
	for i, c := range evidence {
		fmt.Fprintf(&b, "\n[chunk_%d] (id=%s, source=%s)\n%s\n", i+1, c.ID, c.SourceType, c.Text)
	}
	return b.String()
}

func (e *Extractor) parseResponse(companyID string, pillar model.Pillar, text string, evidence []model.EvidenceChunk) []model.MetricObservation {
	var wire wireResponse
	if err := json.Unmarshal([]byte(cleanJSON(text)), &wire); err != nil {
		zap.L().Warn("unparseable extraction response, treating as empty",
			zap.String("company_id", companyID),
			zap.String("pillar", string(pillar)),
			zap.Error(err),
		)
		return nil
	}

	chunkSources := make(map[string]model.SourceType, len(evidence))
	for _, c := range evidence {
		chunkSources[c.ID] = c.SourceType
	}

	var out []model.MetricObservation
	for _, wm := range wire.Metrics {
		def := e.registry.ByName(wm.Name)
		if def == nil {
			zap.L().Debug("dropping unknown metric name", zap.String("name", wm.Name))
			continue
		}

		value, ok := normalizeValue(def.Type, wm.Value)
		if !ok {
			zap.L().Warn("dropping metric with untypeable value",
				zap.String("name", wm.Name), zap.String("type", string(def.Type)))
			continue
		}

		obs := model.MetricObservation{
			Name:       wm.Name,
			Value:      value,
			Unit:       wm.Unit,
			Period:     wm.Period,
			Pillar:     pillar,
			Confidence: clamp01(wm.Confidence),
			SourceType: model.SourceDocument,
			Context:    wm.Context,
		}
		if def.Unit != "" && obs.Unit == "" {
			obs.Unit = def.Unit
		}
		if wm.AsOfDate != "" {
			if d, err := time.Parse("2006-01-02", wm.AsOfDate); err == nil {
				obs.AsOfDate = &d
			}
		}

		obs.ChunkIDs = resolveRefs(wm.SourceChunks, evidence)
		applySourceType(&obs, chunkSources)
		out = append(out, obs)
	}
	return out
}

// resolveRefs parses and resolves every cited chunk reference, dropping the
// ones that match nothing.
func resolveRefs(refs []string, evidence []model.EvidenceChunk) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, raw := range refs {
		ref, ok := ParseChunkRef(raw)
		if !ok {
			zap.L().Debug("unparseable chunk reference dropped", zap.String("ref", raw))
			continue
		}
		id := ref.Resolve(evidence)
		if id == "" {
			zap.L().Debug("unresolved chunk reference dropped", zap.String("ref", raw))
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// applySourceType derives the observation's source type from its resolved
// chunks and applies the corroboration boost when references span both
// document and connector evidence. The boost is applied exactly once.
func applySourceType(obs *model.MetricObservation, sources map[string]model.SourceType) {
	var hasDoc, hasConn bool
	for _, id := range obs.ChunkIDs {
		switch sources[id] {
		case model.SourceConnector:
			hasConn = true
		case model.SourceDocument:
			hasDoc = true
		}
	}

	if hasConn && !hasDoc {
		obs.SourceType = model.SourceConnector
	}
	if hasConn && hasDoc {
		obs.Confidence = min(obs.Confidence+corroborationBoost, 1.0)
		obs.Corroborated = true
	}
}

// cleanJSON strips markdown code fences the model sometimes wraps around the
// payload.
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

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

const extractionSystemPrompt = `You are a due-diligence analyst extracting quantitative and qualitative metrics from evidence about a software company.

Rules:
- Only report metrics that appear in the provided metric catalogue.
- Cite the evidence chunks supporting each metric using their chunk labels or ids.
- Report confidence in [0,1] reflecting how directly the evidence states the value.
- Use as_of_date (YYYY-MM-DD) when the evidence dates the figure.
- Respond with strict JSON only, in the shape {"metrics": [{"name": ..., "value": ..., "unit": ..., "period": ..., "as_of_date": ..., "confidence": ..., "source_chunks": [...], "context": ...}]}.
- Do not invent values; omit metrics the evidence does not support.`
