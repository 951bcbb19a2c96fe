package command

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// stripSpace drops every Unicode white space character, including
// full-width spaces.
var stripSpace = runes.Remove(runes.In(unicode.White_Space))

// unitMarkers are stripped after whitespace removal. Both spellings of
// millimetres are accepted since every dimension is interpreted in mm.
var unitMarkers = []string{"毫米", "mm"}

// numeralReplacer substitutes single Chinese numeral characters with their
// digit strings. It is a character-for-substring replacement, not a
// positional numeral parse: "二十" becomes "210", not "20".
var numeralReplacer = strings.NewReplacer(
	"十", "10",
	"九", "9",
	"八", "8",
	"七", "7",
	"六", "6",
	"五", "5",
	"四", "4",
	"三", "3",
	"二", "2",
	"一", "1",
	"零", "0",
)

// Normalize rewrites raw command text into the canonical form the parser
// matches against. The steps run in a fixed order:
//
//  1. all whitespace is removed;
//  2. the unit markers "毫米" and "mm" are removed;
//  3. the numerals 零 through 十 are replaced with digits.
//
// No other characters are altered. Empty input yields empty output.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text, _, _ = transform.String(stripSpace, text)

	for _, unit := range unitMarkers {
		text = strings.ReplaceAll(text, unit, "")
	}

	return numeralReplacer.Replace(text)
}
