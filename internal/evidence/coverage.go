package evidence

import (
	"strings"

	"github.com/sells-group/diligence-cli/internal/model"
)

// Coverage computes the deterministic data-coverage result for a pillar. A
// required data point is present iff a current metric with that name exists,
// or any of the point's text variants appears case-insensitively in the
// selected evidence. Pure function of its inputs; no clock, no randomness.
func (a *Aggregator) Coverage(pillar model.Pillar, metrics []model.Metric, chunks []model.EvidenceChunk) model.CoverageResult {
	items := a.checklist.ForPillar(pillar, a.registry)

	result := model.CoverageResult{
		Pillar:        pillar,
		RequiredCount: len(items),
	}
	if len(items) == 0 {
		return result
	}

	metricNames := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		metricNames[strings.ToLower(m.Name)] = true
	}

	var corpus strings.Builder
	for _, c := range chunks {
		corpus.WriteString(strings.ToLower(c.Text))
		corpus.WriteByte('\n')
	}
	text := corpus.String()

	for _, item := range items {
		point := strings.ToLower(item.RequiredDataPoint)
		present := metricNames[point]
		if !present {
			for _, v := range nameVariants(point) {
				if strings.Contains(text, v) {
					present = true
					break
				}
			}
		}

		if present {
			result.PresentPoints = append(result.PresentPoints, item.RequiredDataPoint)
		} else {
			result.MissingPoints = append(result.MissingPoints, item.RequiredDataPoint)
			if item.IsCritical {
				result.CriticalMissing = append(result.CriticalMissing, item.RequiredDataPoint)
			}
		}
	}

	result.Percent = len(result.PresentPoints) * 100 / result.RequiredCount
	return result
}

// nameVariants expands a snake_case data point name into the textual forms
// it plausibly takes inside prose: the raw name, the space-separated form,
// and forms with "pct" rendered as "%".
func nameVariants(point string) []string {
	variants := []string{point}

	if spaced := strings.ReplaceAll(point, "_", " "); spaced != point {
		variants = append(variants, spaced)
	}
	if strings.Contains(point, "pct") {
		pct := strings.ReplaceAll(point, "pct", "%")
		variants = append(variants, pct, strings.ReplaceAll(pct, "_", " "))
	}
	return variants
}
