// Package transport owns the byte streams shared with the completion worker
// process.
//
// A Channel holds non-owning handles to the worker's stdin, stdout, and
// stderr. Writes are serialized and FIFO. Two pump goroutines drain the
// worker's output as it arrives: stdout bytes run through the wire decoder
// into a frame queue, stderr text is split into a line queue for the host's
// error display. Consumers never block; the drain methods hand back whatever
// has accumulated and clear the queue.
//
// A write failure means the worker's stdin pipe is gone. The Channel latches
// into a broken state that is never cleared: every later write is a no-op,
// which upstream turns into "no correlation id" and a permanently degraded
// session.
package transport
