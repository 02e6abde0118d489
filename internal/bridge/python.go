package bridge

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// pythonHostProgVar is the host variable naming a user-chosen interpreter,
// consulted after path probing fails.
const pythonHostProgVar = "keycomp#python_host_prog"

// defaultPython is the last-resort interpreter name, resolved via PATH.
const defaultPython = "python3"

// ResolvePython picks the interpreter used to launch the worker.
//
// The search is deterministic, first match wins: the interpreter embedding
// the host, when its basename starts with "python" (it may not, when python
// is embedded in the editor binary); then a short list of well-known
// interpreter locations under the installation prefix; then the
// keycomp#python_host_prog host variable; then plain "python3".
func ResolvePython(host Host, current, prefix string) string {
	if current != "" {
		base := strings.ToLower(filepath.Base(current))
		if strings.HasPrefix(base, "python") {
			return current
		}
	}

	for _, check := range pythonChecks() {
		guess := filepath.Join(prefix, check)
		if info, err := os.Stat(guess); err == nil && !info.IsDir() {
			return guess
		}
	}

	if v, ok := host.Var(pythonHostProgVar, defaultPython).(string); ok && v != "" {
		return v
	}
	return defaultPython
}

// pythonChecks returns the relative interpreter paths probed under the
// installation prefix, most specific first.
func pythonChecks() []string {
	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join("Scripts", "python.exe"),
			"python.exe",
		}
	}
	return []string{
		filepath.Join("bin", "python3"),
		filepath.Join("bin", "python"),
	}
}
