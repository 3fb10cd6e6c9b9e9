package todo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/models"
)

const idPrefix = "todo-"

// ID derives the identifier of a todo from its text and 0-based line.
// It only stays stable while the todo keeps its line number.
func ID(text string, line int) string {
	return idPrefix + checksum.Of(text, strconv.Itoa(line))[:16]
}

// Resolve finds the position in items referenced by ref. ref is tried as an
// exact id, then as a 1-based index, then as the todo text (case-insensitive,
// must match exactly one todo).
func Resolve(items []models.TodoItem, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, apperr.Invalid("todo_id_or_index", "reference is empty")
	}

	for i, it := range items {
		if it.ID == ref {
			return i, nil
		}
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n > 0 && n <= len(items) {
			return n - 1, nil
		}
		return -1, invalidRef(ref, len(items))
	}

	match := -1
	for i, it := range items {
		if strings.EqualFold(it.Text, ref) {
			if match >= 0 {
				return -1, apperr.Invalid("todo_id_or_index",
					"%q matches more than one todo; use an id or index", ref)
			}
			match = i
		}
	}
	if match >= 0 {
		return match, nil
	}

	if strings.HasPrefix(ref, idPrefix) {
		return -1, fmt.Errorf("%w: %s (it may have moved; list todos again or use an index 1-%d)",
			apperr.ErrTodoNotFound, ref, len(items))
	}
	return -1, invalidRef(ref, len(items))
}

func invalidRef(ref string, n int) error {
	if n == 0 {
		return apperr.Invalid("todo_id_or_index", "invalid todo ID or index: %s (document has no todos)", ref)
	}
	return apperr.Invalid("todo_id_or_index",
		"invalid todo ID or index: %s. Use a todo ID or 1-based index (1-%d)", ref, n)
}
