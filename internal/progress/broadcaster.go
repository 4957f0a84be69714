package progress

import (
	"github.com/sells-group/diligence-cli/internal/model"
)

// Broadcaster receives progress events from the orchestrator. Implementations
// must not block: a slow consumer is the consumer's problem, not the
// pipeline's.
type Broadcaster interface {
	Publish(event model.ProgressEvent)
}

// Nop discards events. Used by CLI runs that render progress directly.
type Nop struct{}

func (Nop) Publish(model.ProgressEvent) {}

// Multi fans one event out to several broadcasters.
type Multi []Broadcaster

func (m Multi) Publish(event model.ProgressEvent) {
	for _, b := range m {
		b.Publish(event)
	}
}
