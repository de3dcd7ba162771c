package nl2sql

import (
	"regexp"
	"strings"
)

var fencedSQLPattern = regexp.MustCompile("(?s)```(?:sql\\r?\\n)?(.*?)```")

// ExtractSQL returns the contents of the first fenced code block in text,
// or the whole text when there is none. Both are trimmed. It never fails:
// text without SQL comes back as-is and surfaces later as an execution error.
func ExtractSQL(text string) string {
	match := fencedSQLPattern.FindStringSubmatch(text)
	if match == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(match[1])
}
