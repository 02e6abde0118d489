package bridge

import "github.com/dshills/keycomp/internal/logging"

// Direct is the in-process strategy: every call goes straight into the
// Engine with no transport or correlation. Used when the host cannot run a
// worker process.
type Direct struct {
	host    Host
	engine  Engine
	log     *logging.Logger
	filters map[string]struct{}
}

var _ Dispatcher = (*Direct)(nil)

// NewDirect creates a direct dispatcher over an in-process engine.
func NewDirect(host Host, engine Engine, opts ...Option) *Direct {
	o := applyOptions(opts)
	return &Direct{
		host:    host,
		engine:  engine,
		log:     o.log,
		filters: make(map[string]struct{}),
	}
}

// EnableLogging turns on debug logging locally and in the engine.
func (d *Direct) EnableLogging() {
	d.engine.Call("enable_logging", nil)
	d.log.Enable()
}

// AddSource registers a completion source.
func (d *Direct) AddSource(path string) {
	d.engine.Call("add_source", []any{path})
}

// AddFilter registers a filter once per path.
func (d *Direct) AddFilter(path string) {
	if _, loaded := d.filters[path]; loaded {
		return
	}
	d.filters[path] = struct{}{}
	d.engine.Call("add_filter", []any{path})
}

// SetSourceAttributes pushes per-source attribute overrides.
func (d *Direct) SetSourceAttributes(ctx Context) {
	d.engine.Call("set_source_attributes", []any{ctx})
}

// SetCustom pushes user customization values.
func (d *Direct) SetCustom(custom any) {
	d.engine.Call("set_custom", []any{custom})
}

// OnEvent forwards an editor event.
func (d *Direct) OnEvent(ctx Context) {
	d.engine.Call("on_event", []any{ctx})
}

// MergeResults merges synchronously; there is nothing to poll.
func (d *Direct) MergeResults(ctx Context) MergeResult {
	p, ok := d.engine.MergeResults(ctx)
	if !ok {
		return MergeResult{}
	}
	return MergeResult{IsAsync: p.IsAsync, Results: p.Results}
}
