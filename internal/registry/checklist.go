package registry

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/diligence-cli/internal/model"
)

// ChecklistItem is one required data point in a pillar's coverage checklist.
type ChecklistItem struct {
	RequiredDataPoint string `yaml:"required_data_point" json:"required_data_point"`
	IsCritical        bool   `yaml:"is_critical" json:"is_critical"`
	Priority          int    `yaml:"priority" json:"priority"`
}

// Checklist maps pillars to their ordered required data points.
type Checklist map[model.Pillar][]ChecklistItem

// LoadChecklistFromFile reads a YAML checklist keyed by pillar. Items are
// ordered by ascending priority, preserving file order for equal priorities.
func LoadChecklistFromFile(path string) (Checklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read checklist")
	}

	var raw map[string][]ChecklistItem
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal checklist")
	}

	cl := make(Checklist, len(raw))
	for key, items := range raw {
		pillar := model.Pillar(key)
		if !pillar.Valid() {
			return nil, eris.Errorf("registry: checklist references unknown pillar %q", key)
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Priority < items[j].Priority
		})
		cl[pillar] = items
	}
	return cl, nil
}

// ForPillar returns the checklist items for a pillar. When the checklist has
// no entry for the pillar, it falls back to the registry's full metric name
// list with no critical flags.
func (c Checklist) ForPillar(pillar model.Pillar, r *MetricRegistry) []ChecklistItem {
	if items, ok := c[pillar]; ok && len(items) > 0 {
		return items
	}

	defs := r.ForPillar(pillar)
	items := make([]ChecklistItem, 0, len(defs))
	for i, d := range defs {
		items = append(items, ChecklistItem{
			RequiredDataPoint: d.Name,
			Priority:          i + 1,
		})
	}
	return items
}
