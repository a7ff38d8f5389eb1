package llm

import (
	"regexp"
	"strings"
)

// replFence matches one ```repl ... ``` segment, lazily, across lines.
var replFence = regexp.MustCompile("(?s)```repl(.*?)```")

// ExtractCode concatenates the trimmed bodies of every repl fence in text,
// in order of appearance, joined by newlines.
func ExtractCode(text string) string {
	matches := replFence.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, strings.TrimSpace(m[1]))
	}
	return strings.Join(parts, "\n")
}
