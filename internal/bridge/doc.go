// Package bridge connects the editor host to an out-of-process completion
// worker.
//
// The public surface is the Dispatcher capability set: fire-and-forget
// configuration calls (add_source, add_filter, set_source_attributes,
// set_custom, on_event, enable_logging) and the poll-based merge_results
// call. Two strategies implement it, selected at construction time:
//
//   - Async spawns a worker process and speaks the msgpack envelope
//     protocol over its stdio. MergeResults never blocks: it performs one
//     drain pass and reports "still async, poll again" until the worker's
//     response arrives. Repeated polls for the same cursor position reuse
//     the outstanding correlation id instead of dispatching again.
//
//   - Direct calls an in-process Engine, for hosts that cannot run a child
//     process. MergeResults returns immediately.
//
// Failure is deliberately terminal. If the worker cannot be launched, or
// its pipe breaks, the dispatcher surfaces one diagnostic through the
// host's error display (including any buffered worker stderr) and then
// degrades every call to a silent no-op for the rest of the session. There
// is no reconnect and no restart; dispatcher methods never return errors to
// the completion orchestration layer.
package bridge
