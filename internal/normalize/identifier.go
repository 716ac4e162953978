package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	trailingZeroFraction = regexp.MustCompile(`^(\d+)\.0+$`)
	scientificInteger    = regexp.MustCompile(`^\d(\.\d+)?[eE]\+?\d+$`)
)

// Identifier renders an id-like cell as plain text: spreadsheet text markers
// are removed and numbers that were rendered as floats get their digits back.
func Identifier(value string) string {
	s := strings.TrimSpace(value)
	for {
		unwrapped := unwrapFormula(s)
		unwrapped = strings.TrimSpace(strings.TrimLeft(unwrapped, "'"))
		if unwrapped == s {
			break
		}
		s = unwrapped
	}

	if m := trailingZeroFraction.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if scientificInteger.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && f < 1e21 && f == math.Trunc(f) {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return s
}

// unwrapFormula strips the ="..." wrapper exports use to force text cells.
func unwrapFormula(s string) string {
	if len(s) >= 3 && strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		return s[2 : len(s)-1]
	}
	return s
}
