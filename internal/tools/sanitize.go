package tools

import (
	"regexp"
	"strings"
)

var (
	ansiEscape   = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	promptPrefix = regexp.MustCompile(`(?m)^(?:Out|In)\[[0-9]+\]: `)
)

// Sanitize strips ANSI escape sequences, interactive-interpreter
// "In[n]: "/"Out[n]: " prefixes, and control characters other than
// newline and tab from process output.
func Sanitize(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	s = promptPrefix.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}
