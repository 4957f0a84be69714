package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/model"
)

func TestRunRegistry_RejectsConcurrentRun(t *testing.T) {
	r := NewRunRegistry()

	require.NoError(t, r.Acquire("acme", "run-1"))
	assert.Error(t, r.Acquire("acme", "run-2"), "second run for the same company must be rejected")
	assert.NoError(t, r.Acquire("globex", "run-3"), "other companies are unaffected")

	r.Release("acme", "run-1")
	assert.NoError(t, r.Acquire("acme", "run-2"))
}

func TestRunRegistry_StaleReleaseIgnored(t *testing.T) {
	r := NewRunRegistry()

	require.NoError(t, r.Acquire("acme", "run-1"))
	r.Release("acme", "stale-run")

	id, ok := r.ActiveRun("acme")
	require.True(t, ok)
	assert.Equal(t, "run-1", id)
}

func TestMultiBroadcaster(t *testing.T) {
	var a, b capture
	m := Multi{&a, &b}

	m.Publish(model.ProgressEvent{CompanyID: "acme", Progress: 40})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, 40, a.events[0].Progress)
}

type capture struct {
	events []model.ProgressEvent
}

func (c *capture) Publish(e model.ProgressEvent) {
	c.events = append(c.events, e)
}
