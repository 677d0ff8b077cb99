package progress

import "context"

// Sink consumes batches of search events. Implementations must honor ctx
// deadlines and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it, as does Discard.
type Emitter interface {
	Emit(evt Event)
}

// Discard is an Emitter that drops everything; used when progress is disabled.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}
