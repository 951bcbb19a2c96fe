package command

import (
	"regexp"
	"strconv"
)

// number is the literal grammar shared by every numeric pattern: digits,
// optionally followed by a single decimal point and more digits.
const number = `(\d+(?:\.\d+)?)`

// Match is the outcome of extracting one field. A field that did not match
// is reported with Matched false, so callers can tell a value that was read
// from the text apart from a default that happens to be numerically equal.
type Match struct {
	Matched bool
	Value   float64
	// Text is the full substring the pattern matched.
	Text string
}

// Or returns the matched value, or def when the field was absent.
func (m Match) Or(def float64) float64 {
	if m.Matched {
		return m.Value
	}
	return def
}

// convertFunc turns the submatches of a field pattern into a value.
// Returning false treats the field as absent.
type convertFunc func(sub []string) (float64, bool)

// field is one row of a shape's extraction table.
type field struct {
	name string
	// patterns are tried in order; the first one that matches anywhere wins.
	patterns []*regexp.Regexp
	convert  convertFunc
	def      float64
}

// extract runs the field's patterns against normalized text.
func (f field) extract(text string) Match {
	for _, re := range f.patterns {
		sub := re.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		v, ok := f.convert(sub)
		if !ok {
			continue
		}
		return Match{Matched: true, Value: v, Text: sub[0]}
	}
	return Match{}
}

// lastFloat parses the final capture group as a float.
func lastFloat(sub []string) (float64, bool) {
	v, err := strconv.ParseFloat(sub[len(sub)-1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// lastInt parses the final capture group as an integer count.
func lastInt(sub []string) (float64, bool) {
	n, err := strconv.Atoi(sub[len(sub)-1])
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

// radiusOrDiameter halves the value when the matched keyword was 直径.
func radiusOrDiameter(sub []string) (float64, bool) {
	v, ok := lastFloat(sub)
	if !ok {
		return 0, false
	}
	if sub[1] == "直径" {
		return v / 2, true
	}
	return v, true
}

func numberField(name string, def float64, patterns ...string) field {
	f := field{name: name, convert: lastFloat, def: def}
	for _, p := range patterns {
		f.patterns = append(f.patterns, regexp.MustCompile(p))
	}
	return f
}
