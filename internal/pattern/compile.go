// Package pattern compiles user-supplied extraction patterns into matchers
// and manages pattern sets: validation, defaults and import/export.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/logvision/backend/internal/models"
)

// InvalidPatternError reports a pattern whose regular expression does not compile.
type InvalidPatternError struct {
	Pattern models.Pattern
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q (%s): %v", e.Pattern.Name, e.Pattern.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Matcher is a compiled pattern. Only the first capture group is ever used.
type Matcher struct {
	pattern models.Pattern
	re      *regexp.Regexp
	groups  int
}

// Compile normalizes foreign named-capture syntax and compiles the pattern.
func Compile(p models.Pattern) (*Matcher, error) {
	re, err := regexp.Compile(normalize(p.Pattern))
	if err != nil {
		return nil, &InvalidPatternError{Pattern: p, Err: err}
	}
	return &Matcher{pattern: p, re: re, groups: re.NumSubexp()}, nil
}

// MustCompile is like Compile but panics on error. Intended for built-in patterns.
func MustCompile(p models.Pattern) *Matcher {
	m, err := Compile(p)
	if err != nil {
		panic(err)
	}
	return m
}

// Pattern returns the source pattern.
func (m *Matcher) Pattern() models.Pattern { return m.pattern }

// Name returns the signal name values are recorded under.
func (m *Matcher) Name() string { return m.pattern.Name }

// Regexp returns the compiled expression.
func (m *Matcher) Regexp() *regexp.Regexp { return m.re }

// HasGroup reports whether the pattern can ever yield a value.
func (m *Matcher) HasGroup() bool { return m.groups > 0 }

// Extract returns the text of capture group 1 on the first match in line.
// It reports false when nothing matched, when the pattern has no capture
// group, or when group 1 did not take part in the match.
func (m *Matcher) Extract(line string) (string, bool) {
	if m.groups == 0 {
		return "", false
	}
	loc := m.re.FindStringSubmatchIndex(line)
	if loc == nil || loc[2] < 0 {
		return "", false
	}
	return line[loc[2]:loc[3]], true
}

// normalize rewrites named groups written as (?P<name>...), (?<name>...)
// or (?'name'...) into plain capturing groups. Group numbering is unchanged.
// Escapes and character classes are copied verbatim.
func normalize(expr string) string {
	if !strings.Contains(expr, "(?") {
		return expr
	}

	var b strings.Builder
	b.Grow(len(expr))

	inClass := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]

		if c == '\\' {
			b.WriteByte(c)
			if i+1 < len(expr) {
				i++
				b.WriteByte(expr[i])
			}
			continue
		}

		if inClass {
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
			continue
		}

		if c == '[' {
			inClass = true
			b.WriteByte(c)
			// A leading ']' (optionally after '^') is a literal.
			if i+1 < len(expr) && expr[i+1] == '^' {
				i++
				b.WriteByte(expr[i])
			}
			if i+1 < len(expr) && expr[i+1] == ']' {
				i++
				b.WriteByte(expr[i])
			}
			continue
		}

		if c == '(' {
			if end := namedGroupEnd(expr, i); end > 0 {
				b.WriteByte('(')
				i = end
				continue
			}
		}

		b.WriteByte(c)
	}
	return b.String()
}

// namedGroupEnd returns the index of the closing delimiter of a named-group
// opener starting at expr[open] == '(', or -1 when there is none.
func namedGroupEnd(expr string, open int) int {
	rest := expr[open+1:]
	var prefixLen int
	var closer byte
	switch {
	case strings.HasPrefix(rest, "?P<"):
		prefixLen, closer = 3, '>'
	case strings.HasPrefix(rest, "?<") && !strings.HasPrefix(rest, "?<=") && !strings.HasPrefix(rest, "?<!"):
		prefixLen, closer = 2, '>'
	case strings.HasPrefix(rest, "?'"):
		prefixLen, closer = 2, '\''
	default:
		return -1
	}

	nameStart := open + 1 + prefixLen
	for j := nameStart; j < len(expr); j++ {
		c := expr[j]
		if c == closer {
			if j == nameStart {
				return -1
			}
			return j
		}
		if !isNameByte(c) {
			return -1
		}
	}
	return -1
}

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
