package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/voxcad/pkg/build"
	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/kernel"
	"github.com/chazu/voxcad/pkg/parts"
)

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpSolid carries a kernel solid between builtins.
type sexpSolid struct {
	solid kernel.Solid
	// desc is a short description for printing, e.g. "(cube 10)".
	desc string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return s.desc
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// float reads keyword name into dst when present.
func (a kwArgs) float(fn, name string, dst *float64) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, name, err)
	}
	*dst = f
	return nil
}

// floats returns every keyword argument as a number.
func (a kwArgs) floats(fn string) (map[string]float64, error) {
	out := make(map[string]float64, len(a.kw))
	for name, v := range a.kw {
		f, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", fn, name, err)
		}
		out[name] = f
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a whole number.
func toInt(s zygo.Sexp) (int, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected whole number, got %g", f)
	}
	return int(f), nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toSolid extracts a kernel solid from a sexpSolid.
func toSolid(s zygo.Sexp) (kernel.Solid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v.solid, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toSolids extracts every argument as a solid.
func toSolids(fn string, args []zygo.Sexp) ([]kernel.Solid, error) {
	out := make([]kernel.Solid, len(args))
	for i, a := range args {
		s, err := toSolid(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", fn, i+1, err)
		}
		out[i] = s
	}
	return out, nil
}

// toXYZ reads three numeric positional arguments.
func toXYZ(fn string, args []zygo.Sexp) (x, y, z float64, err error) {
	if len(args) != 3 {
		return 0, 0, 0, fmt.Errorf("%s requires x y z, got %d numbers", fn, len(args))
	}
	var v [3]float64
	for i, a := range args {
		if v[i], err = toFloat64(a); err != nil {
			return 0, 0, 0, fmt.Errorf("%s: %c: %w", fn, 'x'+rune(i), err)
		}
	}
	return v[0], v[1], v[2], nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// scope is the state builtins share during one evaluation.
type scope struct {
	kernel kernel.Kernel
	parser *command.Parser
	design *Design
}

func (sc *scope) buildSpec(fn string, spec command.Spec) (zygo.Sexp, error) {
	solid, err := build.Build(sc.kernel, spec)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}
	return &sexpSolid{solid: solid, desc: describe(spec.Kind().String(), spec.Params())}, nil
}

func describe(name string, params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("(" + name)
	for _, k := range keys {
		fmt.Fprintf(&b, " :%s %g", strings.ReplaceAll(k, "_", "-"), params[k])
	}
	b.WriteString(")")
	return b.String()
}

// registerBuiltins installs the part script builtins into a zygomys
// environment. Solids are built eagerly against sc.kernel; export records
// them in sc.design.
//
// Source must be preprocessed with preprocessSource() so that :keyword
// tokens arrive as recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, sc *scope) {

	// -----------------------------------------------------------------------
	// (gear :teeth 20 :module 1.5 :width 5 :bore 3)
	// -----------------------------------------------------------------------
	env.AddFunction("gear", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		g := command.DefaultGear()
		if v, ok := pa.kw["teeth"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("gear: teeth: %w", err)
			}
			g.Teeth = n
		}
		if err := pa.float("gear", "module", &g.Module); err != nil {
			return zygo.SexpNull, err
		}
		if err := pa.float("gear", "width", &g.Width); err != nil {
			return zygo.SexpNull, err
		}
		if err := pa.float("gear", "bore", &g.BoreDiameter); err != nil {
			return zygo.SexpNull, err
		}
		if err := pa.float("gear", "bore-diameter", &g.BoreDiameter); err != nil {
			return zygo.SexpNull, err
		}
		return sc.buildSpec("gear", g)
	})

	// -----------------------------------------------------------------------
	// (cube 10) or (cube :size 10)
	// -----------------------------------------------------------------------
	env.AddFunction("cube", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		c := command.DefaultCube()
		if len(pa.positional) > 0 {
			f, err := toFloat64(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cube: size: %w", err)
			}
			c.Size = f
		}
		if err := pa.float("cube", "size", &c.Size); err != nil {
			return zygo.SexpNull, err
		}
		return sc.buildSpec("cube", c)
	})

	// -----------------------------------------------------------------------
	// (cylinder :radius 5 :height 20) or (cylinder :diameter 10 :height 20)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		c := command.DefaultCylinder()
		if err := pa.float("cylinder", "radius", &c.Radius); err != nil {
			return zygo.SexpNull, err
		}
		if _, ok := pa.kw["diameter"]; ok {
			var d float64
			if err := pa.float("cylinder", "diameter", &d); err != nil {
				return zygo.SexpNull, err
			}
			c.Radius = d / 2
		}
		if err := pa.float("cylinder", "height", &c.Height); err != nil {
			return zygo.SexpNull, err
		}
		return sc.buildSpec("cylinder", c)
	})

	// -----------------------------------------------------------------------
	// (command "20齿模数1.5的齿轮")
	// -----------------------------------------------------------------------
	env.AddFunction("command", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("command requires one string argument")
		}
		text, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("command: %w", err)
		}
		spec, err := sc.parser.Parse(text)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("command %q: %w", text, err)
		}
		return sc.buildSpec("command", spec)
	})

	// -----------------------------------------------------------------------
	// (flange :outer-diameter 120 :bolts 8), (plate ...), (spur-gear ...),
	// (cycloidal-gear ...)
	//
	// Registered in snake case because the preprocessor rewrites kebab-case
	// identifiers.
	// -----------------------------------------------------------------------
	for _, partName := range parts.Names() {
		env.AddFunction(strings.ReplaceAll(partName, "-", "_"), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) > 0 {
				return zygo.SexpNull, fmt.Errorf("%s takes keyword arguments only", partName)
			}
			params, err := pa.floats(partName)
			if err != nil {
				return zygo.SexpNull, err
			}
			p, err := parts.New(partName)
			if err != nil {
				return zygo.SexpNull, err
			}
			if err := parts.Apply(p, params); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", partName, err)
			}
			solid, err := p.Build(sc.kernel)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", partName, err)
			}
			resolved, _ := parts.Params(p)
			return &sexpSolid{solid: solid, desc: describe(partName, resolved)}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (translate solid x y z), (rotate solid x y z)
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("translate requires a solid")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		x, y, z, err := toXYZ("translate", args[1:])
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{
			solid: sc.kernel.Translate(s, x, y, z),
			desc:  fmt.Sprintf("(translate %s %g %g %g)", args[0].SexpString(nil), x, y, z),
		}, nil
	})

	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a solid")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		x, y, z, err := toXYZ("rotate", args[1:])
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{
			solid: sc.kernel.Rotate(s, x, y, z),
			desc:  fmt.Sprintf("(rotate %s %g %g %g)", args[0].SexpString(nil), x, y, z),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...), (difference a b ...) subtracts every later solid from a.
	// -----------------------------------------------------------------------
	env.AddFunction("union", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("union requires at least one solid")
		}
		solids, err := toSolids("union", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{solid: sc.kernel.Union(solids...), desc: fmt.Sprintf("(union %d solids)", len(solids))}, nil
	})

	env.AddFunction("difference", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("difference requires at least two solids")
		}
		solids, err := toSolids("difference", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		cut := sc.kernel.Union(solids[1:]...)
		return &sexpSolid{
			solid: sc.kernel.Difference(solids[0], cut),
			desc:  fmt.Sprintf("(difference %s ...)", args[0].SexpString(nil)),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (export "name" solid)
	// -----------------------------------------------------------------------
	env.AddFunction("export", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("export requires a name and a solid")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("export: name: %w", err)
		}
		if strings.TrimSpace(partName) == "" {
			return zygo.SexpNull, fmt.Errorf("export: name must not be empty")
		}
		s, err := toSolid(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("export %q: %w", partName, err)
		}
		if err := sc.design.add(partName, s); err != nil {
			return zygo.SexpNull, fmt.Errorf("export: %w", err)
		}
		return args[1], nil
	})
}
