package progress

import "context"

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so crawlers
// can remain agnostic about how events are buffered or consumed.
type Emitter interface {
	Emit(evt Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(evt Event)

// Emit calls f(evt).
func (f EmitterFunc) Emit(evt Event) {
	f(evt)
}

// WithBuild returns an Emitter that stamps buildID on every event before
// forwarding it to next. A nil next yields a no-op emitter.
func WithBuild(next Emitter, buildID string) Emitter {
	return EmitterFunc(func(evt Event) {
		if next == nil {
			return
		}
		if evt.BuildID == "" {
			evt.BuildID = buildID
		}
		next.Emit(evt)
	})
}

type buildKey struct{}

// ContextWithBuild attaches buildID to ctx so emitters deep in the crawl can
// label their events.
func ContextWithBuild(ctx context.Context, buildID string) context.Context {
	return context.WithValue(ctx, buildKey{}, buildID)
}

// BuildFromContext returns the build ID stored by ContextWithBuild, if any.
func BuildFromContext(ctx context.Context) string {
	id, _ := ctx.Value(buildKey{}).(string)
	return id
}
