package bridge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/dshills/keycomp/internal/transport"
)

// ErrNoEntry indicates no worker entry script was configured.
var ErrNoEntry = errors.New("worker entry script not configured")

// WorkerConfig describes how to launch the completion worker.
type WorkerConfig struct {
	// Python is the interpreter to run. When empty it is resolved via
	// ResolvePython from the fields below and the host.
	Python string

	// PythonExe is the interpreter embedding the host process, preferred
	// by resolution when its name looks like a python binary.
	PythonExe string

	// PythonPrefix is the installation prefix probed for interpreter
	// binaries when PythonExe does not qualify.
	PythonPrefix string

	// Entry is the worker's entry-point script.
	Entry string

	// ServerAddr is the editor's RPC socket address, passed to the worker
	// so it can talk back to the editor directly. Defaults to the
	// keycomp#_serveraddr host variable.
	ServerAddr string
}

// Worker is a running completion worker process. The dispatcher owns its
// lifecycle exclusively; once the process dies nothing restarts it.
type Worker struct {
	cmd   *exec.Cmd
	chann *transport.Channel
}

// StartWorker launches `python entry serveraddr` and wires its stdio into a
// transport channel. The monitor goroutine marks the channel broken when
// the process exits, so dispatch degrades to no-ops without ever polling
// the process. Cancel ctx to kill the worker.
func StartWorker(ctx context.Context, cfg WorkerConfig) (*Worker, error) {
	if cfg.Entry == "" {
		return nil, ErrNoEntry
	}

	cmd := exec.CommandContext(ctx, cfg.Python, cfg.Entry, cfg.ServerAddr)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %q: %w", cfg.Python, err)
	}

	w := &Worker{
		cmd:   cmd,
		chann: transport.New(stdin, stdout, stderr),
	}
	go w.monitor()
	return w, nil
}

// Channel returns the transport channel wired to the worker's stdio.
func (w *Worker) Channel() *transport.Channel {
	return w.chann
}

// Pid returns the worker's process id.
func (w *Worker) Pid() int {
	return w.cmd.Process.Pid
}

// monitor waits for process exit and latches the channel broken. The exit
// status itself is irrelevant; any exit ends the session.
func (w *Worker) monitor() {
	_ = w.cmd.Wait()
	w.chann.MarkBroken()
}
