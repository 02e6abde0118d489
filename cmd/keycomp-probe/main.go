// Package main is keycomp-probe, a manual exerciser for the completion
// worker bridge. It spawns a worker from a YAML config, feeds it a scripted
// request sequence, and polls merge_results until candidates arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/keycomp/internal/bridge"
	"github.com/dshills/keycomp/internal/config"
	"github.com/dshills/keycomp/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "keycomp.yaml", "bridge configuration file")
		varsPath   = flag.String("vars", "", "JSON file of host variables (optional)")
		sources    = flag.String("sources", "", "comma-separated source scripts to register")
		filters    = flag.String("filters", "", "comma-separated filter scripts to register")
		input      = flag.String("input", "pri", "typed text to complete")
		line       = flag.Int("line", 1, "cursor line")
		col        = flag.Int("col", 1, "cursor column")
		timeout    = flag.Duration("timeout", 5*time.Second, "how long to poll for results")
		verbose    = flag.Bool("verbose", false, "enable bridge debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	host, err := newFileHost(*varsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	log := logging.New(os.Stderr, "keycomp-probe", logging.ParseLevel(cfg.Logging.Level))
	d := bridge.NewAsync(ctx, host, bridge.WorkerConfig{
		Python:       cfg.Worker.Python,
		PythonPrefix: cfg.Worker.PythonPrefix,
		Entry:        cfg.Worker.Entry,
		ServerAddr:   cfg.Worker.ServerAddr,
	}, bridge.WithLogger(log))

	if *verbose {
		d.EnableLogging()
	}
	for _, s := range splitList(*sources) {
		d.AddSource(s)
	}
	for _, f := range splitList(*filters) {
		d.AddFilter(f)
	}

	cctx := bridge.Context{
		"event":    "TextChangedI",
		"input":    *input,
		"position": []any{*line, *col},
	}
	d.OnEvent(cctx)

	results, answered := poll(ctx, d, cctx, *timeout)
	if !answered {
		fmt.Fprintln(os.Stderr, "Error: no response before timeout")
		return 1
	}
	for _, candidate := range results {
		fmt.Println(render(candidate))
	}
	return 0
}

// poll drives the two-phase merge_results protocol: the first call
// dispatches, later calls re-poll the same position with event "Async"
// until the worker answers or the deadline passes.
func poll(ctx context.Context, d bridge.Dispatcher, cctx bridge.Context, timeout time.Duration) ([]any, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	res := d.MergeResults(cctx)
	repoll := bridge.Context{
		"event":    "Async",
		"input":    cctx["input"],
		"position": cctx["position"],
	}
	for res.IsAsync && len(res.Results) == 0 {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline.C:
			return nil, false
		case <-tick.C:
			res = d.MergeResults(repoll)
		}
	}
	return res.Results, true
}

// render shows one completion candidate on a single line.
func render(candidate any) string {
	m, ok := candidate.(map[string]any)
	if !ok {
		return fmt.Sprint(candidate)
	}
	word, _ := m["word"].(string)
	kind, _ := m["kind"].(string)
	if kind != "" {
		return fmt.Sprintf("%s\t[%s]", word, kind)
	}
	return word
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
