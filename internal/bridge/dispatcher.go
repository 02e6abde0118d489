package bridge

import (
	"github.com/dshills/keycomp/internal/logging"
	"github.com/dshills/keycomp/internal/wire"
)

// Context is the completion state passed through to the worker: cursor
// position, trigger event, buffer details. The bridge treats it as opaque
// except for the "event" and "position" fields used for poll de-duplication.
type Context = map[string]any

// MergeResult is the outcome of a MergeResults call.
//
// IsAsync true with empty Results means the worker has not answered yet and
// the host should poll again. Once a response is delivered, IsAsync carries
// the worker's own flag: true if the worker is still gathering candidates
// beyond what it returned.
type MergeResult struct {
	IsAsync bool
	Results []any
}

// Dispatcher is the capability set consumed by the completion orchestration
// layer. Methods never block and never return errors; transport and process
// failures surface only through the host's error display.
type Dispatcher interface {
	// EnableLogging turns on debug logging in the bridge and the worker.
	EnableLogging()

	// AddSource registers a completion source script with the worker.
	AddSource(path string)

	// AddFilter registers a filter script. Repeated paths are dropped.
	AddFilter(path string)

	// SetSourceAttributes pushes per-source attribute overrides.
	SetSourceAttributes(ctx Context)

	// SetCustom pushes user customization values.
	SetCustom(custom any)

	// OnEvent forwards an editor event to the worker.
	OnEvent(ctx Context)

	// MergeResults requests merged completion candidates for ctx.
	MergeResults(ctx Context) MergeResult
}

// Host is the editor surface the bridge consumes: variable lookup and the
// error display side channel. Implemented by the embedding editor layer.
type Host interface {
	// Var returns the host variable name, or def when unset.
	Var(name string, def any) any

	// DisplayError shows a message on the host's error display.
	DisplayError(msg string)
}

// Engine is the in-process merge engine behind the direct strategy. The
// engine itself lives outside this package.
type Engine interface {
	// Call invokes a fire-and-forget operation.
	Call(name string, args []any)

	// MergeResults merges candidates synchronously. ok is false when the
	// engine produced nothing.
	MergeResults(ctx Context) (wire.MergePayload, bool)
}

// Option configures a dispatcher.
type Option func(*options)

type options struct {
	log *logging.Logger
}

// WithLogger sets the bridge logger. The default logs to stderr and stays
// silent until EnableLogging.
func WithLogger(log *logging.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.New(nil, "keycomp", logging.LevelDebug)
	}
	return o
}
