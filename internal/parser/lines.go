package parser

import "strings"

// SplitLines breaks a text body into trimmed, non-blank lines. Lines of any
// length are kept.
func SplitLines(text string) []string {
	var lines []string
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
