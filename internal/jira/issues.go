package jira

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/todo"
)

var (
	_ storage.Documents = (*Client)(nil)
	_ storage.TimeLog   = (*Client)(nil)
)

// startedLayout is the timestamp format Jira expects for worklog.started.
const startedLayout = "2006-01-02T15:04:05.000-0700"

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Description *string `json:"description"`
	} `json:"fields"`
}

type updateRequest struct {
	Fields struct {
		Description string `json:"description"`
	} `json:"fields"`
}

type worklogRequest struct {
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
	Comment          string `json:"comment,omitempty"`
	Started          string `json:"started"`
}

type worklogResponse struct {
	ID               string `json:"id"`
	Comment          string `json:"comment"`
	Started          string `json:"started"`
	Created          string `json:"created"`
	TimeSpent        string `json:"timeSpent"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
}

// Fetch returns the plain-text description of issue key. A missing
// description is an empty document.
func (c *Client) Fetch(ctx context.Context, key string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, issuePath(key)+"?fields=description", nil)
	if err != nil {
		return "", notFound(fmt.Errorf("jira: get issue %s: %w", key, err), key)
	}
	var out issueResponse
	if err := decodeResponse(resp, &out); err != nil {
		return "", err
	}
	if out.Fields.Description == nil {
		return "", nil
	}
	return *out.Fields.Description, nil
}

// Replace overwrites the description of issue key.
func (c *Client) Replace(ctx context.Context, key, text string) error {
	var body updateRequest
	body.Fields.Description = text
	resp, err := c.do(ctx, http.MethodPut, issuePath(key), body)
	if err != nil {
		return notFound(fmt.Errorf("jira: update issue %s: %w", key, err), key)
	}
	discard(resp)
	return nil
}

// Record adds a worklog to issue key. The duration is sent as whole seconds
// without rounding; Jira's own minimum is enforced server side.
func (c *Client) Record(ctx context.Context, key string, d time.Duration, comment string, startedAt time.Time) (models.LogEntry, error) {
	secs := int64(d / time.Second)
	resp, err := c.do(ctx, http.MethodPost, issuePath(key)+"/worklog", worklogRequest{
		TimeSpentSeconds: secs,
		Comment:          comment,
		Started:          startedAt.Format(startedLayout),
	})
	if err != nil {
		return models.LogEntry{}, notFound(fmt.Errorf("jira: add worklog to %s: %w", key, err), key)
	}
	var out worklogResponse
	if err := decodeResponse(resp, &out); err != nil {
		return models.LogEntry{}, err
	}

	entry := models.LogEntry{
		ID:               out.ID,
		DocumentKey:      key,
		Comment:          comment,
		StartedAt:        startedAt,
		TimeSpentSeconds: secs,
		TimeSpent:        out.TimeSpent,
	}
	if out.TimeSpentSeconds > 0 {
		entry.TimeSpentSeconds = out.TimeSpentSeconds
	}
	if entry.TimeSpent == "" {
		entry.TimeSpent = todo.FormatDuration(time.Duration(entry.TimeSpentSeconds) * time.Second)
	}
	if t, err := time.Parse(startedLayout, out.Created); err == nil {
		entry.Created = t
	}
	return entry, nil
}
