package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dshills/keycomp/internal/wire"
)

// ErrBroken indicates the worker's stdin pipe has failed.
// Once returned, the channel never accepts another write.
var ErrBroken = errors.New("worker pipe broken")

// readBufSize is the chunk size for stdout reads.
const readBufSize = 4096

// Channel multiplexes the worker's three stdio streams into queues:
// outbound envelope bytes, inbound decoded frames, and inbound stderr
// lines. It is safe for concurrent use.
type Channel struct {
	mu       sync.Mutex
	stdin    io.Writer
	dec      *wire.Decoder
	frames   []wire.Frame
	errLines []string
	notices  []string

	broken atomic.Bool
	wg     sync.WaitGroup
}

// New creates a channel over the worker's streams and starts the stdout and
// stderr pumps. The channel does not own the streams; the process supervisor
// closes them when the worker exits.
func New(stdin io.Writer, stdout, stderr io.Reader) *Channel {
	c := &Channel{
		stdin: stdin,
		dec:   wire.NewDecoder(),
	}
	if stdout != nil {
		c.wg.Add(1)
		go c.pumpOut(stdout)
	}
	if stderr != nil {
		c.wg.Add(1)
		go c.pumpErr(stderr)
	}
	return c
}

// Write sends encoded envelope bytes to the worker. Writes are serialized
// and hit the pipe in call order. Once the channel is broken every write is
// a no-op returning ErrBroken; the first underlying failure latches that
// state permanently.
func (c *Channel) Write(p []byte) error {
	if c.broken.Load() {
		return ErrBroken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stdin == nil {
		c.broken.Store(true)
		return ErrBroken
	}
	if _, err := c.stdin.Write(p); err != nil {
		c.broken.Store(true)
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// MarkBroken latches the channel into the broken state. The process
// supervisor calls this when the worker exits.
func (c *Channel) MarkBroken() {
	c.broken.Store(true)
}

// Broken reports whether the pipe has failed.
func (c *Channel) Broken() bool {
	return c.broken.Load()
}

// DrainFrames returns every decoded response frame received so far and
// clears the queue. It never blocks.
func (c *Channel) DrainFrames() []wire.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := c.frames
	c.frames = nil
	return frames
}

// DrainErrors returns buffered stderr lines verbatim and clears the queue.
func (c *Channel) DrainErrors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.errLines
	c.errLines = nil
	return lines
}

// DrainNotices returns protocol-level diagnostics (contaminated or
// corrupted stdout) and clears the queue.
func (c *Channel) DrainNotices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	notices := c.notices
	c.notices = nil
	return notices
}

// Wait blocks until both pumps have observed EOF. Intended for tests and
// shutdown paths, not the dispatch path.
func (c *Channel) Wait() {
	c.wg.Wait()
}

// pumpOut drains worker stdout through the wire decoder.
func (c *Channel) pumpOut(stdout io.Reader) {
	defer c.wg.Done()

	buf := make([]byte, readBufSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			c.ingest(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// ingest feeds bytes to the decoder and queues whatever completes.
func (c *Channel) ingest(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dec.Feed(p)
	for {
		frame, err := c.dec.Next()
		if err == nil {
			c.frames = append(c.frames, frame)
			continue
		}
		switch {
		case errors.Is(err, wire.ErrIncomplete):
			return
		case errors.Is(err, wire.ErrContaminated):
			c.notices = append(c.notices,
				`stdout seems contaminated by sources. stdout is used for RPC; please pipe or discard`)
		default:
			c.notices = append(c.notices, err.Error())
		}
	}
}

// pumpErr splits worker stderr into lines for the host's error display.
func (c *Channel) pumpErr(stderr io.Reader) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, readBufSize), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		c.mu.Lock()
		c.errLines = append(c.errLines, line)
		c.mu.Unlock()
	}
}
