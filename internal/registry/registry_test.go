package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/model"
)

func TestDefault_IndexesByNameAndPillar(t *testing.T) {
	r := Default()

	def := r.ByName("arr")
	require.NotNil(t, def)
	assert.Equal(t, model.ValueScalar, def.Type)
	assert.Equal(t, model.PillarFinancialHealth, def.Pillar)
	assert.True(t, def.Critical)

	assert.Nil(t, r.ByName("no_such_metric"))

	for _, pillar := range model.ScoringPillars() {
		assert.NotEmpty(t, r.ForPillar(pillar), "pillar %s has no catalogue entries", pillar)
	}
}

func TestChecklist_FallbackUsesRegistryNames(t *testing.T) {
	r := Default()
	cl := Checklist{}

	items := cl.ForPillar(model.PillarCustomerHealth, r)
	require.NotEmpty(t, items)
	assert.Len(t, items, len(r.ForPillar(model.PillarCustomerHealth)))
	for _, item := range items {
		assert.False(t, item.IsCritical, "fallback checklist must not carry critical flags")
		assert.NotNil(t, r.ByName(item.RequiredDataPoint))
	}
}

func TestLoadChecklistFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	content := `customer_health:
  - required_data_point: net_revenue_retention
    is_critical: true
    priority: 2
  - required_data_point: gross_churn_rate
    is_critical: true
    priority: 1
  - required_data_point: nps
    priority: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cl, err := LoadChecklistFromFile(path)
	require.NoError(t, err)

	items := cl.ForPillar(model.PillarCustomerHealth, Default())
	require.Len(t, items, 3)
	// Sorted by priority.
	assert.Equal(t, "gross_churn_rate", items[0].RequiredDataPoint)
	assert.Equal(t, "net_revenue_retention", items[1].RequiredDataPoint)
	assert.True(t, items[0].IsCritical)
	assert.False(t, items[2].IsCritical)
}

func TestLoadChecklistFromFile_UnknownPillar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_pillar:\n  - required_data_point: x\n"), 0o644))

	_, err := LoadChecklistFromFile(path)
	assert.Error(t, err)
}
