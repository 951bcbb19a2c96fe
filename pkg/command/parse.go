package command

import (
	"errors"
	"strings"
)

// ErrUnrecognized is returned when no shape keyword family matches the text.
var ErrUnrecognized = errors.New("command: no shape keyword recognized")

// shape is one variant of the closed set of shape kinds: the keywords that
// classify text as this kind, the ordered extraction table for its fields and
// the constructor that assembles the typed Spec from resolved values.
type shape struct {
	kind     Kind
	keywords []string
	fields   []field
	build    func(v map[string]float64) Spec
}

// classifies reports whether normalized text contains any of the keywords.
func (s *shape) classifies(text string) bool {
	for _, kw := range s.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func gearShape() *shape {
	def := DefaultGear()
	teeth := numberField("teeth", float64(def.Teeth),
		`齿数(\d+)`,
		// Digits that are the fractional part of a decimal do not count.
		`(?:^|[^\d.])(\d+)齿`,
	)
	teeth.convert = lastInt

	return &shape{
		kind:     KindGear,
		keywords: []string{"齿轮", "正齿轮", "直齿轮"},
		fields: []field{
			teeth,
			numberField("module", def.Module, `模数?的?`+number),
			numberField("width", def.Width, `宽度?`+number),
			numberField("bore_diameter", def.BoreDiameter, `(?:孔径|内径|轴径|中心孔直径)`+number),
		},
		build: func(v map[string]float64) Spec {
			return Gear{
				Teeth:        int(v["teeth"]),
				Module:       v["module"],
				Width:        v["width"],
				BoreDiameter: v["bore_diameter"],
			}
		},
	}
}

func cubeShape() *shape {
	return &shape{
		kind:     KindCube,
		keywords: []string{"立方体", "方块"},
		fields: []field{
			numberField("size", DefaultCube().Size, number),
		},
		build: func(v map[string]float64) Spec {
			return Cube{Size: v["size"]}
		},
	}
}

func cylinderShape(strictRadius bool) *shape {
	radiusPattern := `(半径|直径)?` + number
	if strictRadius {
		radiusPattern = `(半径|直径)` + number
	}
	def := DefaultCylinder()
	radius := numberField("radius", def.Radius, radiusPattern)
	radius.convert = radiusOrDiameter

	return &shape{
		kind:     KindCylinder,
		keywords: []string{"圆柱", "柱体"},
		fields: []field{
			radius,
			numberField("height", def.Height, `高度?`+number),
		},
		build: func(v map[string]float64) Spec {
			return Cylinder{Radius: v["radius"], Height: v["height"]}
		},
	}
}

// FieldResult records how a single parameter was resolved.
type FieldResult struct {
	Name  string
	Match Match
	// Value is the match value, or the default when the field was absent.
	Value float64
}

// Defaulted reports whether the value came from the default.
func (r FieldResult) Defaulted() bool {
	return !r.Match.Matched
}

// Extraction is the detailed result of parsing a command.
type Extraction struct {
	Input      string
	Normalized string
	Kind       Kind
	Fields     []FieldResult
	Spec       Spec
}

// Field returns the result for the named parameter.
func (e *Extraction) Field(name string) (FieldResult, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldResult{}, false
}

// Option configures a Parser.
type Option func(*Parser)

// WithStrictRadius requires "半径" or "直径" before a cylinder radius value.
// By default a bare number is accepted as the radius.
func WithStrictRadius() Option {
	return func(p *Parser) {
		p.strictRadius = true
	}
}

// Parser maps Chinese modelling commands to shape specifications. It holds
// no mutable state and is safe for concurrent use.
type Parser struct {
	strictRadius bool
	// shapes is in classification priority order; the first match wins.
	shapes []*shape
}

// NewParser returns a Parser configured with opts.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	p.shapes = []*shape{
		gearShape(),
		cubeShape(),
		cylinderShape(p.strictRadius),
	}
	return p
}

// Classify returns the shape kind that normalized text describes, or
// KindUnknown.
func (p *Parser) Classify(normalized string) Kind {
	if s := p.classify(normalized); s != nil {
		return s.kind
	}
	return KindUnknown
}

func (p *Parser) classify(normalized string) *shape {
	for _, s := range p.shapes {
		if s.classifies(normalized) {
			return s
		}
	}
	return nil
}

// Extract normalizes text, classifies it and resolves every field of the
// chosen kind. Fields are extracted independently; an absent field takes its
// default. The only failure is ErrUnrecognized.
func (p *Parser) Extract(text string) (*Extraction, error) {
	normalized := Normalize(text)
	s := p.classify(normalized)
	if s == nil {
		return nil, ErrUnrecognized
	}

	ex := &Extraction{
		Input:      text,
		Normalized: normalized,
		Kind:       s.kind,
		Fields:     make([]FieldResult, 0, len(s.fields)),
	}
	values := make(map[string]float64, len(s.fields))
	for _, f := range s.fields {
		m := f.extract(normalized)
		v := m.Or(f.def)
		values[f.name] = v
		ex.Fields = append(ex.Fields, FieldResult{Name: f.name, Match: m, Value: v})
	}
	ex.Spec = s.build(values)
	return ex, nil
}

// Parse returns the Spec that text describes, or ErrUnrecognized.
func (p *Parser) Parse(text string) (Spec, error) {
	ex, err := p.Extract(text)
	if err != nil {
		return nil, err
	}
	return ex.Spec, nil
}

var defaultParser = NewParser()

// Parse parses text with the default (permissive) parser.
func Parse(text string) (Spec, error) {
	return defaultParser.Parse(text)
}
