package sink

import (
	"github.com/zono819/token-seller/internal/domain/entity"
)

// EventSink receives structured status updates and free-text log lines for
// display. The supervisor only produces events, never consumes UI state.
type EventSink interface {
	// PublishStatus emits the re-derived status of one task
	PublishStatus(status entity.TaskStatus)

	// PublishLog emits a free-text log line; the sink timestamps it and
	// bounds retained history
	PublishLog(line string)
}

// Nop is an EventSink that discards everything
type Nop struct{}

func (Nop) PublishStatus(entity.TaskStatus) {}
func (Nop) PublishLog(string)               {}
