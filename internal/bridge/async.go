package bridge

import (
	"context"
	"strings"
	"sync"

	"github.com/dshills/keycomp/internal/logging"
	"github.com/dshills/keycomp/internal/track"
	"github.com/dshills/keycomp/internal/transport"
	"github.com/dshills/keycomp/internal/wire"
)

// serverAddrVar is the host variable carrying the editor's RPC socket
// address, handed to the worker as its third argument.
const serverAddrVar = "keycomp#_serveraddr"

// Async is the out-of-process strategy. It owns one worker process for its
// lifetime and correlates envelopes with responses by queue id. All methods
// return promptly; MergeResults signals "poll again" instead of waiting.
type Async struct {
	host  Host
	log   *logging.Logger
	chann *transport.Channel

	pending track.Pending

	mu      sync.Mutex
	filters map[string]struct{}
	crashed bool
}

var _ Dispatcher = (*Async)(nil)

// NewAsync creates an async dispatcher and launches the worker process.
//
// A launch failure is not an error to the caller: the failure is shown on
// the host's error display and the dispatcher comes up permanently
// degraded, answering every call as a no-op. ctx bounds the worker's
// lifetime; cancel it to kill the process.
func NewAsync(ctx context.Context, host Host, cfg WorkerConfig, opts ...Option) *Async {
	o := applyOptions(opts)
	a := &Async{
		host:    host,
		log:     o.log,
		filters: make(map[string]struct{}),
	}

	if cfg.ServerAddr == "" {
		cfg.ServerAddr, _ = host.Var(serverAddrVar, "").(string)
	}
	if cfg.Python == "" {
		cfg.Python = ResolvePython(host, cfg.PythonExe, cfg.PythonPrefix)
	}

	worker, err := StartWorker(ctx, cfg)
	if err != nil {
		host.DisplayError("failed to start completion worker: " + err.Error())
		a.chann = transport.New(nil, nil, nil)
		a.chann.MarkBroken()
		return a
	}
	a.chann = worker.Channel()
	a.log.Debug("worker started: %s %s %s", cfg.Python, cfg.Entry, cfg.ServerAddr)
	return a
}

// newAsyncWithChannel wires a dispatcher directly onto a channel. Used by
// tests to script the worker side.
func newAsyncWithChannel(host Host, chann *transport.Channel, log *logging.Logger) *Async {
	return &Async{
		host:    host,
		log:     log,
		chann:   chann,
		filters: make(map[string]struct{}),
	}
}

// EnableLogging turns on debug logging locally and in the worker.
func (a *Async) EnableLogging() {
	a.put("enable_logging", nil)
	a.log.Enable()
}

// AddSource registers a completion source.
func (a *Async) AddSource(path string) {
	a.put("add_source", []any{path})
}

// AddFilter registers a filter once per path. The loaded set is owned by
// this dispatcher instance, not shared process-wide.
func (a *Async) AddFilter(path string) {
	a.mu.Lock()
	_, loaded := a.filters[path]
	if !loaded {
		a.filters[path] = struct{}{}
	}
	a.mu.Unlock()
	if loaded {
		return
	}
	a.put("add_filter", []any{path})
}

// SetSourceAttributes pushes per-source attribute overrides.
func (a *Async) SetSourceAttributes(ctx Context) {
	a.put("set_source_attributes", []any{ctx})
}

// SetCustom pushes user customization values.
func (a *Async) SetCustom(custom any) {
	a.put("set_custom", []any{custom})
}

// OnEvent forwards an editor event.
func (a *Async) OnEvent(ctx Context) {
	a.put("on_event", []any{ctx})
}

// MergeResults requests merged candidates for ctx without blocking.
//
// When ctx re-polls the position of an outstanding request (event "Async",
// same position), the outstanding id is reused and no new envelope is
// written. Otherwise a fresh request is dispatched; if the worker is gone
// the zero MergeResult comes back immediately. One drain pass then either
// delivers the matching response or reports IsAsync so the host retries on
// its next tick.
func (a *Async) MergeResults(ctx Context) MergeResult {
	event, _ := ctx["event"].(string)
	position := ctx["position"]

	queueID, reused := a.pending.Reuse(event, position)
	if !reused {
		queueID = a.put("merge_results", []any{ctx})
		if queueID == "" {
			return MergeResult{}
		}
	}

	matches := a.fetch(queueID)
	if len(matches) == 0 {
		// No response yet. Park the id so the next poll for this
		// position skips dispatch.
		a.pending.Remember(queueID, position)
		return MergeResult{IsAsync: true}
	}

	a.pending.Clear()
	p, ok := matches[0].MergePayload()
	if !ok {
		return MergeResult{}
	}
	a.log.Debug("merge_results answered id=%s results=%d async=%v",
		queueID, len(p.Results), p.IsAsync)
	return MergeResult{IsAsync: p.IsAsync, Results: p.Results}
}

// put encodes and writes one envelope, returning its correlation id or ""
// when the worker is unusable. A write failure reports the crash once and
// leaves the session permanently degraded.
func (a *Async) put(name string, args []any) string {
	if a.chann.Broken() {
		return ""
	}

	queueID := track.NextID()
	data, err := wire.EncodeEnvelope(name, args, queueID)
	if err != nil {
		a.host.DisplayError("encode " + name + ": " + err.Error())
		return ""
	}

	if err := a.chann.Write(data); err != nil {
		a.reportCrash()
		return ""
	}

	a.log.Debug("sent %s id=%s", name, queueID)
	return queueID
}

// fetch performs one non-blocking drain pass: stderr and protocol notices
// go to the host's error display, frames are matched against queueID, and
// everything unmatched is dropped.
func (a *Async) fetch(queueID string) []wire.Frame {
	for _, notice := range a.chann.DrainNotices() {
		a.host.DisplayError(notice)
	}
	for _, line := range a.chann.DrainErrors() {
		a.host.DisplayError(line)
	}
	return track.Match(a.chann.DrainFrames(), queueID)
}

// reportCrash surfaces the broken pipe once, with whatever stderr the
// worker left behind.
func (a *Async) reportCrash() {
	a.mu.Lock()
	seen := a.crashed
	a.crashed = true
	a.mu.Unlock()
	if seen {
		return
	}

	a.host.DisplayError("completion worker crashed")
	if lines := a.chann.DrainErrors(); len(lines) > 0 {
		a.host.DisplayError("stderr=" + strings.Join(lines, "\n"))
	}
}
