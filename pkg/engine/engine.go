// Package engine evaluates part scripts. It wraps zygomys in a sandboxed
// environment with CAD builtins and returns the named solids a script
// exports.
//
// A script looks like:
//
//	(def hub (flange :outer-diameter 60 :bolts 4 :bolt-circle-diameter 45
//	                 :center-hole-diameter 20 :bolt-hole-diameter 6))
//	(export "hub" hub)
//	(export "pinion" (gear :teeth 12 :module 1.5 :width 8))
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/kernel"
)

// DefaultPartName names the result of a script that exports nothing but
// evaluates to a solid.
const DefaultPartName = "part"

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Part is a named solid exported by a script.
type Part struct {
	Name  string
	Solid kernel.Solid
}

// Design is the ordered set of parts a script exported.
type Design struct {
	Parts []Part
}

func (d *Design) add(name string, s kernel.Solid) error {
	if _, ok := d.Lookup(name); ok {
		return fmt.Errorf("part %q exported twice", name)
	}
	d.Parts = append(d.Parts, Part{Name: name, Solid: s})
	return nil
}

// Lookup returns the solid exported under name.
func (d *Design) Lookup(name string) (kernel.Solid, bool) {
	for _, p := range d.Parts {
		if p.Name == name {
			return p.Solid, true
		}
	}
	return nil, false
}

// Names returns the exported part names in export order.
func (d *Design) Names() []string {
	names := make([]string, len(d.Parts))
	for i, p := range d.Parts {
		names[i] = p.Name
	}
	return names
}

// Engine evaluates part scripts against a geometry kernel.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	kernel  kernel.Kernel
	parser  *command.Parser
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithParser sets the parser used by the command builtin.
func WithParser(p *command.Parser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithTimeout overrides DefaultEvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates an Engine that builds solids with k.
func NewEngine(k kernel.Kernel, opts ...Option) *Engine {
	e := &Engine{
		kernel:  k,
		parser:  command.NewParser(),
		timeout: DefaultEvalTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs a part script and returns the parts it exported.
//
// Return semantics:
//   - On success: returns design + nil errors + nil error
//   - On parse/eval failure: returns nil design + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Design, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("engine: panic during evaluation: %v", r)}
			}
		}()

		d, evalErrs, err := e.evaluate(source)
		ch <- evalResult{design: d, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, e.timeout, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Design, []EvalError, error) {
	// Empty source is a valid program that exports nothing.
	if strings.TrimSpace(source) == "" {
		return &Design{}, nil, nil
	}

	// Sandbox mode prevents scripts from reaching the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	sc := &scope{kernel: e.kernel, parser: e.parser, design: &Design{}}
	registerBuiltins(env, sc)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}

	last, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	if len(sc.design.Parts) == 0 {
		if s, ok := last.(*sexpSolid); ok {
			sc.design.Parts = []Part{{Name: DefaultPartName, Solid: s.solid}}
		}
	}
	return sc.design, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// No line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
