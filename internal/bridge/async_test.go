package bridge

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dshills/keycomp/internal/logging"
	"github.com/dshills/keycomp/internal/transport"
	"github.com/dshills/keycomp/internal/wire"
)

// fakeHost records error-display calls and serves canned variables.
type fakeHost struct {
	mu   sync.Mutex
	vars map[string]any
	errs []string
}

func (h *fakeHost) Var(name string, def any) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.vars[name]; ok {
		return v
	}
	return def
}

func (h *fakeHost) DisplayError(msg string) {
	h.mu.Lock()
	h.errs = append(h.errs, msg)
	h.mu.Unlock()
}

func (h *fakeHost) displayed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.errs...)
}

func (h *fakeHost) displayedContains(substr string) bool {
	for _, e := range h.displayed() {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// failWriter rejects every write.
type failWriter struct{ writes int }

func (w *failWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, io.ErrClosedPipe
}

// testLogger returns a logger that stays quiet unless enabled by the test.
func testLogger() *logging.Logger {
	return logging.New(io.Discard, "test", logging.LevelDebug)
}

// decodeEnvelopes parses every envelope written to the sink so far.
func decodeEnvelopes(t *testing.T, sink *bytes.Buffer) []wire.Frame {
	t.Helper()
	dec := wire.NewDecoder()
	dec.Feed(sink.Bytes())
	var out []wire.Frame
	for {
		f, err := dec.Next()
		if err != nil {
			return out
		}
		out = append(out, f)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAsync_FireAndForgetFIFO(t *testing.T) {
	var sink bytes.Buffer
	host := &fakeHost{}
	a := newAsyncWithChannel(host, transport.New(&sink, nil, nil), testLogger())

	a.AddSource("buffer.py")
	a.AddFilter("matcher_fuzzy.py")
	a.AddFilter("matcher_fuzzy.py") // duplicate, must be dropped
	a.SetCustom(map[string]any{"max": 10})
	a.OnEvent(Context{"event": "BufEnter"})

	envs := decodeEnvelopes(t, &sink)
	want := []string{"add_source", "add_filter", "set_custom", "on_event"}
	if len(envs) != len(want) {
		t.Fatalf("wrote %d envelopes, want %d", len(envs), len(want))
	}
	for i, env := range envs {
		if env.Payload["name"] != want[i] {
			t.Errorf("envelope %d = %v, want %q", i, env.Payload["name"], want[i])
		}
		if env.QueueID == "" {
			t.Errorf("envelope %d has no queue id", i)
		}
	}
}

func TestAsync_MergeResults_PollAndReuse(t *testing.T) {
	var sink bytes.Buffer
	outR, outW := io.Pipe()
	defer outW.Close()

	host := &fakeHost{}
	a := newAsyncWithChannel(host, transport.New(&sink, outR, nil), testLogger())

	ctx := Context{"event": "Async", "position": []any{1, 5}}

	// First poll: request dispatched, nothing back yet.
	res := a.MergeResults(ctx)
	if !res.IsAsync || len(res.Results) != 0 {
		t.Fatalf("first poll = %+v, want pending", res)
	}
	envs := decodeEnvelopes(t, &sink)
	if len(envs) != 1 {
		t.Fatalf("first poll wrote %d envelopes, want 1", len(envs))
	}
	queueID := envs[0].QueueID

	// Immediate re-poll at the same position: id reused, no new envelope.
	res = a.MergeResults(ctx)
	if !res.IsAsync {
		t.Fatalf("re-poll = %+v, want pending", res)
	}
	if got := decodeEnvelopes(t, &sink); len(got) != 1 {
		t.Fatalf("re-poll wrote %d envelopes, want 1", len(got))
	}

	// Worker answers the outstanding id.
	reply, err := msgpack.Marshal(map[string]any{
		"queue_id":       queueID,
		"is_async":       false,
		"merged_results": []any{"foo", "bar"},
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	go outW.Write(reply)

	var final MergeResult
	waitFor(t, func() bool {
		final = a.MergeResults(ctx)
		return !final.IsAsync
	})
	if !reflect.DeepEqual(final.Results, []any{"foo", "bar"}) {
		t.Errorf("Results = %v, want [foo bar]", final.Results)
	}

	// Pending slot cleared: the same poll now dispatches fresh.
	a.MergeResults(ctx)
	if got := decodeEnvelopes(t, &sink); len(got) != 2 {
		t.Errorf("post-answer poll wrote %d envelopes total, want 2", len(got))
	}
}

func TestAsync_MergeResults_NonAsyncAlwaysDispatches(t *testing.T) {
	var sink bytes.Buffer
	host := &fakeHost{}
	a := newAsyncWithChannel(host, transport.New(&sink, nil, nil), testLogger())

	ctx := Context{"event": "TextChangedI", "position": []any{1, 5}}
	a.MergeResults(ctx)
	a.MergeResults(ctx)

	if got := decodeEnvelopes(t, &sink); len(got) != 2 {
		t.Errorf("wrote %d envelopes, want 2 (no reuse for non-Async events)", len(got))
	}
}

func TestAsync_BrokenPipe(t *testing.T) {
	w := &failWriter{}
	host := &fakeHost{}
	a := newAsyncWithChannel(host, transport.New(w, nil, nil), testLogger())

	res := a.MergeResults(Context{"event": "TextChangedI", "position": []any{0, 0}})
	if res.IsAsync || res.Results != nil {
		t.Errorf("MergeResults on broken pipe = %+v, want zero", res)
	}
	if !host.displayedContains("completion worker crashed") {
		t.Errorf("crash not surfaced; displayed = %v", host.displayed())
	}

	// Everything afterward is a silent no-op, never another pipe touch.
	a.EnableLogging()
	a.AddSource("buffer.py")
	if w.writes != 1 {
		t.Errorf("pipe writes = %d, want 1", w.writes)
	}
}

func TestAsync_DegradedFromStart(t *testing.T) {
	chann := transport.New(nil, nil, nil)
	chann.MarkBroken()
	host := &fakeHost{}
	a := newAsyncWithChannel(host, chann, testLogger())

	res := a.MergeResults(Context{"event": "Async", "position": []any{1, 1}})
	if res.IsAsync || res.Results != nil {
		t.Errorf("MergeResults = %+v, want zero", res)
	}
	a.OnEvent(Context{"event": "BufEnter"})
	if len(host.displayed()) != 0 {
		t.Errorf("degraded no-ops surfaced errors: %v", host.displayed())
	}
}

func TestAsync_StderrSurfacedVerbatim(t *testing.T) {
	var sink bytes.Buffer
	errR, errW := io.Pipe()

	host := &fakeHost{}
	a := newAsyncWithChannel(host, transport.New(&sink, nil, errR), testLogger())

	go func() {
		io.WriteString(errW, "source buffer.py raised ValueError\n")
		errW.Close()
	}()

	ctx := Context{"event": "Async", "position": []any{3, 9}}
	waitFor(t, func() bool {
		a.MergeResults(ctx)
		return host.displayedContains("source buffer.py raised ValueError")
	})
}

func TestAsync_ContaminatedStdout(t *testing.T) {
	var sink bytes.Buffer
	outR, outW := io.Pipe()

	host := &fakeHost{}
	a := newAsyncWithChannel(host, transport.New(&sink, outR, nil), testLogger())

	go func() {
		data, _ := msgpack.Marshal("a source print()ed this")
		outW.Write(data)
		outW.Close()
	}()

	ctx := Context{"event": "Async", "position": []any{0, 1}}
	var res MergeResult
	waitFor(t, func() bool {
		res = a.MergeResults(ctx)
		return host.displayedContains("contaminated")
	})
	if !res.IsAsync {
		t.Errorf("contaminated frame produced a result: %+v", res)
	}
}

func TestNewAsync_LaunchFailureDegrades(t *testing.T) {
	host := &fakeHost{}
	a := NewAsync(context.Background(), host, WorkerConfig{
		Python: "definitely-not-a-real-interpreter",
		Entry:  "worker.py",
	})

	if !host.displayedContains("failed to start completion worker") {
		t.Errorf("launch failure not surfaced; displayed = %v", host.displayed())
	}
	res := a.MergeResults(Context{"event": "Async", "position": []any{1, 5}})
	if res.IsAsync || res.Results != nil {
		t.Errorf("MergeResults after failed launch = %+v, want zero", res)
	}
}
