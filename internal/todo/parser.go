// Package todo extracts, edits, and identifies Markdown checklist items
// embedded in free-form documents such as issue descriptions.
package todo

import (
	"strings"

	"github.com/starford/raido/internal/models"
)

// Checkbox tokens recognised after a "- " or "* " bullet.
const (
	tokenOpen       = "[ ]"
	tokenDone       = "[x]"
	tokenDoneUpper  = "[X]"
	checkboxLen     = 3
	bulletPrefixLen = 2
)

// Lines splits text into lines the way the editor rejoins them: on "\n",
// dropping a trailing "\r" from each line and the empty remainder after a
// final newline. Empty text has no lines.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ParseLine reports whether line is a todo and, if so, returns its text and
// completion. Leading and trailing whitespace is ignored.
func ParseLine(line string) (text string, completed bool, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "- ") && !strings.HasPrefix(trimmed, "* ") {
		return "", false, false
	}
	rest := trimmed[bulletPrefixLen:]
	if len(rest) < checkboxLen {
		return "", false, false
	}
	switch rest[:checkboxLen] {
	case tokenOpen:
	case tokenDone, tokenDoneUpper:
		completed = true
	default:
		return "", false, false
	}
	text = strings.TrimSpace(rest[checkboxLen:])
	if text == "" {
		return "", false, false
	}
	return text, completed, true
}

// Parse returns the todos in text in document order. Status is Open or
// Completed from the checkbox alone; callers that track sessions overlay Wip.
func Parse(text string) []models.TodoItem {
	var out []models.TodoItem
	for i, line := range Lines(text) {
		t, done, ok := ParseLine(line)
		if !ok {
			continue
		}
		status := models.StatusOpen
		if done {
			status = models.StatusCompleted
		}
		out = append(out, models.TodoItem{
			Text:       t,
			Completed:  done,
			Status:     status,
			LineNumber: i,
			ID:         ID(t, i),
		})
	}
	return out
}
