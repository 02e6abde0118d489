package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// fileHost implements bridge.Host for the probe: variables come from an
// optional JSON file and errors go to stderr. Vim-flavored variable names
// like "keycomp#_serveraddr" are looked up as literal top-level keys.
type fileHost struct {
	vars []byte
}

// gjsonEscaper neutralizes gjson path syntax so variable names are treated
// as plain keys.
var gjsonEscaper = strings.NewReplacer(
	".", `\.`,
	"#", `\#`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"@", `\@`,
)

// newFileHost loads the variables file; an empty path means no variables.
func newFileHost(path string) (*fileHost, error) {
	h := &fileHost{}
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vars file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("vars file %s is not valid JSON", path)
	}
	h.vars = data
	return h, nil
}

// Var returns the named host variable, or def when unset.
func (h *fileHost) Var(name string, def any) any {
	if h.vars == nil {
		return def
	}
	res := gjson.GetBytes(h.vars, gjsonEscaper.Replace(name))
	if !res.Exists() {
		return def
	}
	return res.Value()
}

// DisplayError prints to stderr, standing in for the editor's error display.
func (h *fileHost) DisplayError(msg string) {
	fmt.Fprintln(os.Stderr, "keycomp:", msg)
}
