package corpus

import (
	"strings"
	"unicode/utf8"
)

// trimLine strips surrounding whitespace and drops invalid UTF-8 bytes. The
// inner text of a plan line is kept as written.
func trimLine(line string) string {
	return strings.TrimSpace(sanitizeUTF8(line))
}

// cleanLine collapses whitespace runs and drops invalid UTF-8 bytes. It is
// for HTML element text, where markup indentation leaks into the text.
func cleanLine(line string) string {
	line = sanitizeUTF8(line)
	return strings.Join(strings.Fields(line), " ")
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}

// splitLines cleans every line of text and skips the blank ones.
func splitLines(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if line := cleanLine(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
