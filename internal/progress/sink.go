package progress

import "context"

// Sink consumes batches of events. Implementations must honor ctx deadlines
// and may be invoked from the hub goroutine only.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events in order.
type Emitter interface {
	Emit(evt Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(evt).
func (f EmitterFunc) Emit(evt Event) {
	f(evt)
}

// Multi forwards every event to each emitter in order. Nil emitters are skipped.
func Multi(emitters ...Emitter) Emitter {
	out := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return multi(out)
}

type multi []Emitter

func (m multi) Emit(evt Event) {
	for _, e := range m {
		e.Emit(evt)
	}
}
