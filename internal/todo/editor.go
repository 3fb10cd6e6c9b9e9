package todo

import (
	"strings"
)

// Insert returns text with a new open todo. With existing todos the item
// goes before the first (prepend) or after the last one. Otherwise it goes
// below a "Todos" header, or into a new "## Todos" section at the end.
func Insert(text, todoText string, prepend bool) string {
	newLine := "- [ ] " + todoText
	lines := Lines(text)

	first, last := -1, -1
	for i, l := range lines {
		if _, _, ok := ParseLine(l); ok {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	if first >= 0 {
		pos := last + 1
		if prepend {
			pos = first
		}
		return strings.Join(insertAt(lines, pos, newLine), "\n")
	}

	if h := findTodosHeader(lines); h >= 0 {
		pos := h + 1
		for pos < len(lines) && strings.TrimSpace(lines[pos]) == "" {
			pos++
		}
		return strings.Join(insertAt(lines, pos, newLine), "\n")
	}

	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
		lines = append(lines, "")
	}
	lines = append(lines, "## Todos", "", newLine)
	return strings.Join(lines, "\n")
}

// SetChecked flips the checkbox token on one line and leaves every other
// byte of text untouched, line endings included. line must come from a parse
// of the current text; a stale line number edits whatever is there now.
// Out-of-range lines are ignored.
func SetChecked(text string, line int, completed bool) string {
	from, to, ok := lineSpan(text, line)
	if !ok {
		return text
	}

	idx := strings.Index(text[from:to], "[")
	if idx < 0 {
		return text
	}
	p := from + idx
	if p+checkboxLen > to {
		return text
	}
	token := text[p : p+checkboxLen]
	switch {
	case completed && token == tokenOpen:
		return text[:p] + tokenDone + text[p+checkboxLen:]
	case !completed && (token == tokenDone || token == tokenDoneUpper):
		return text[:p] + tokenOpen + text[p+checkboxLen:]
	}
	return text
}

// lineSpan returns the byte range of line in text, numbered the way Lines
// numbers them, excluding the "\n" and any "\r" before it.
func lineSpan(text string, line int) (from, to int, ok bool) {
	if line < 0 {
		return 0, 0, false
	}
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(text[from:], '\n')
		if nl < 0 {
			return 0, 0, false
		}
		from += nl + 1
	}
	if from >= len(text) {
		return 0, 0, false
	}
	to = len(text)
	if nl := strings.IndexByte(text[from:], '\n'); nl >= 0 {
		to = from + nl
	}
	if to > from && text[to-1] == '\r' {
		to--
	}
	return from, to, true
}

func findTodosHeader(lines []string) int {
	for i, l := range lines {
		t := strings.ToLower(strings.TrimSpace(l))
		if strings.HasPrefix(t, "## todo") || strings.HasPrefix(t, "# todo") ||
			t == "todos:" || t == "**todos**" {
			return i
		}
	}
	return -1
}

func insertAt(lines []string, pos int, line string) []string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:pos]...)
	out = append(out, line)
	return append(out, lines[pos:]...)
}
