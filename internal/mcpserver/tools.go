package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/tracker"
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", apperr.Category(err), err))
}

func optString(req mcp.CallToolRequest, key string) string {
	v, _ := req.GetArguments()[key].(string)
	return strings.TrimSpace(v)
}

func optBool(req mcp.CallToolRequest, key string, def bool) (bool, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, apperr.Invalid(key, "must be a boolean")
}

// optNumber returns nil when key is absent.
func optNumber(req mcp.CallToolRequest, key string) (*float64, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, apperr.Invalid(key, "must be a number")
		}
		f = parsed
	default:
		return nil, apperr.Invalid(key, "must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, apperr.Invalid(key, "must be a finite number")
	}
	return &f, nil
}

func optWhole(req mcp.CallToolRequest, key string) (*int64, error) {
	f, err := optNumber(req, key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, apperr.Invalid(key, "must be a whole number")
	}
	if math.Abs(*f) >= 1<<63 {
		return nil, apperr.Invalid(key, "is out of range")
	}
	n := int64(*f)
	return &n, nil
}

func statusFilter(req mcp.CallToolRequest) ([]models.Status, error) {
	raw, ok := req.GetArguments()["status_filter"]
	if !ok || raw == nil {
		return nil, nil
	}
	var names []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, apperr.Invalid("status_filter", "must be a list of strings")
			}
			names = append(names, name)
		}
	case []string:
		names = v
	case string:
		names = strings.Split(v, ",")
	default:
		return nil, apperr.Invalid("status_filter", "must be a list of strings")
	}

	out := make([]models.Status, 0, len(names))
	for _, n := range names {
		st, ok := models.ParseStatus(strings.ToLower(strings.TrimSpace(n)))
		if !ok {
			return nil, apperr.Invalid("status_filter", "unknown status %q (use open, completed or wip)", n)
		}
		out = append(out, st)
	}
	return out, nil
}

type baseResult struct {
	BaseIssueKey string `json:"base_issue_key"`
	Message      string `json:"message"`
}

func (s *Server) setTodoBase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("issue_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key = strings.TrimSpace(key)
	msg, err := s.tracker.SetBase(ctx, key)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(baseResult{BaseIssueKey: key, Message: msg})
}

func (s *Server) getTodoBase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, ok := s.tracker.Base()
	if !ok {
		return jsonResult(baseResult{Message: "No base issue set. Use set_todo_base to set one."})
	}
	return jsonResult(baseResult{BaseIssueKey: key, Message: fmt.Sprintf("Base issue is %s.", key)})
}

func (s *Server) listTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := statusFilter(req)
	if err != nil {
		return errorResult(err), nil
	}
	res, err := s.tracker.ListTodos(ctx, optString(req, "issue_key"), filter)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) addTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("todo_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prepend, err := optBool(req, "prepend", false)
	if err != nil {
		return errorResult(err), nil
	}
	res, err := s.tracker.AddTodo(ctx, optString(req, "issue_key"), text, prepend)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(struct {
		*tracker.AddResult
		Message string `json:"message"`
	}{res, fmt.Sprintf("Todo added to issue %s", res.DocumentKey)})
}

func (s *Server) updateTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("todo_id_or_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := req.GetArguments()["completed"]; !ok {
		return mcp.NewToolResultError("required argument \"completed\" not found"), nil
	}
	completed, err := optBool(req, "completed", false)
	if err != nil {
		return errorResult(err), nil
	}
	res, err := s.tracker.UpdateTodo(ctx, optString(req, "issue_key"), ref, completed)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) startTodoWork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("todo_id_or_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.tracker.StartWork(ctx, optString(req, "issue_key"), ref)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) pauseTodoWork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("todo_id_or_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.tracker.PauseWork(ctx, optString(req, "issue_key"), ref, optString(req, "worklog_comment"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) checkpointTodoWork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("todo_id_or_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.tracker.CheckpointWork(ctx, optString(req, "issue_key"), ref, optString(req, "worklog_comment"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) completeTodoWork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("todo_id_or_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	markCompleted, err := optBool(req, "mark_completed", true)
	if err != nil {
		return errorResult(err), nil
	}
	secs, err := optWhole(req, "time_spent_seconds")
	if err != nil {
		return errorResult(err), nil
	}
	mins, err := optWhole(req, "time_spent_minutes")
	if err != nil {
		return errorResult(err), nil
	}
	hours, err := optNumber(req, "time_spent_hours")
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.tracker.CompleteWork(ctx, tracker.CompleteRequest{
		DocumentKey:   optString(req, "issue_key"),
		Ref:           ref,
		Comment:       optString(req, "worklog_comment"),
		MarkCompleted: markCompleted,
		Seconds:       secs,
		Minutes:       mins,
		Hours:         hours,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (s *Server) cancelTodoWork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("todo_id_or_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.tracker.CancelWork(ctx, optString(req, "issue_key"), ref)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

type activeSessionsResult struct {
	Sessions   []tracker.ActiveSession `json:"sessions"`
	TotalCount int                     `json:"total_count"`
}

func (s *Server) getActiveWorkSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.tracker.ActiveSessions()
	return jsonResult(activeSessionsResult{Sessions: sessions, TotalCount: len(sessions)})
}

func (s *Server) getTodoFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TodoFormatContract), nil
}

func (s *Server) readTodoFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://todo-format",
			MIMEType: "text/markdown",
			Text:     TodoFormatContract,
		},
	}, nil
}
