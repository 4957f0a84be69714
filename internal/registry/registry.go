package registry

import (
	"github.com/sells-group/diligence-cli/internal/model"
)

// MetricDef describes one named metric in the catalogue: its value type,
// unit, and whether its absence counts against critical coverage.
type MetricDef struct {
	Name        string          `json:"name" yaml:"name"`
	Type        model.ValueKind `json:"type" yaml:"type"`
	Unit        string          `json:"unit,omitempty" yaml:"unit,omitempty"`
	Description string          `json:"description" yaml:"description"`
	Pillar      model.Pillar    `json:"pillar" yaml:"pillar"`
	Critical    bool            `json:"critical,omitempty" yaml:"critical,omitempty"`
}

// MetricRegistry is the indexed static catalogue of metrics per pillar.
type MetricRegistry struct {
	Defs     []MetricDef
	byName   map[string]*MetricDef
	byPillar map[model.Pillar][]*MetricDef
}

// New builds an indexed registry from a list of metric definitions.
func New(defs []MetricDef) *MetricRegistry {
	r := &MetricRegistry{
		Defs:     defs,
		byName:   make(map[string]*MetricDef, len(defs)),
		byPillar: make(map[model.Pillar][]*MetricDef),
	}
	for i := range r.Defs {
		d := &r.Defs[i]
		r.byName[d.Name] = d
		r.byPillar[d.Pillar] = append(r.byPillar[d.Pillar], d)
	}
	return r
}

// Default returns the registry built from the built-in catalogue.
func Default() *MetricRegistry {
	return New(builtinDefs)
}

// ByName returns the definition for the given metric name, or nil.
func (r *MetricRegistry) ByName(name string) *MetricDef {
	return r.byName[name]
}

// ForPillar returns the definitions belonging to the given pillar, in
// catalogue order.
func (r *MetricRegistry) ForPillar(pillar model.Pillar) []*MetricDef {
	return r.byPillar[pillar]
}
