// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the todo and work-session tools over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/tracker"
)

const (
	issueKeyDesc = "Issue key (e.g. PROJ-123). Optional if a base issue was set with set_todo_base."
	todoRefDesc  = "Todo ID (from list_todos), 1-based index, or the exact todo text"
)

// Server wraps the MCP server with the todo tools.
type Server struct {
	mcp     *server.MCPServer
	tracker *tracker.Tracker
}

// New creates a new MCP server with all tools registered.
func New(t *tracker.Tracker, version string) *Server {
	s := &Server{tracker: t}

	s.mcp = server.NewMCPServer(
		"Raido",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("set_todo_base",
		mcp.WithDescription("Set the base issue used by todo commands when issue_key is omitted."),
		mcp.WithString("issue_key", mcp.Required(), mcp.Description("Issue key to use as the default (e.g. PROJ-123)")),
	), s.setTodoBase)

	s.mcp.AddTool(mcp.NewTool("get_todo_base",
		mcp.WithDescription("Show the current base issue, if any."),
	), s.getTodoBase)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List the checklist todos in an issue description with their status "+
			"(open, completed, wip). Todos are Markdown checkboxes: '- [ ] task' or '- [x] done'."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithArray("status_filter",
			mcp.Description("Only return todos with these statuses: open, completed, wip"),
			mcp.Items(map[string]any{"type": "string", "enum": []string{"open", "completed", "wip"}}),
		),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("add_todo",
		mcp.WithDescription("Add a new unchecked todo to an issue description. Goes after the last todo, "+
			"under a Todos header, or into a new '## Todos' section."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithString("todo_text", mcp.Required(), mcp.Description("Text of the new todo")),
		mcp.WithBoolean("prepend", mcp.Description("Insert before the first todo instead of after the last")),
	), s.addTodo)

	s.mcp.AddTool(mcp.NewTool("update_todo",
		mcp.WithDescription("Check or uncheck a todo."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithString("todo_id_or_index", mcp.Required(), mcp.Description(todoRefDesc)),
		mcp.WithBoolean("completed", mcp.Required(), mcp.Description("true to check, false to uncheck")),
	), s.updateTodo)

	s.mcp.AddTool(mcp.NewTool("start_todo_work",
		mcp.WithDescription("Start tracking time on a todo. Only one session per todo can be active."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithString("todo_id_or_index", mcp.Required(), mcp.Description(todoRefDesc)),
	), s.startTodoWork)

	s.mcp.AddTool(mcp.NewTool("pause_todo_work",
		mcp.WithDescription("Stop the work session, log the elapsed time as a worklog and leave the todo unchecked."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithString("todo_id_or_index", mcp.Required(), mcp.Description(todoRefDesc)),
		mcp.WithString("worklog_comment", mcp.Description("Worklog comment (default: 'Partial work on todo: <text>')")),
	), s.pauseTodoWork)

	s.mcp.AddTool(mcp.NewTool("checkpoint_todo_work",
		mcp.WithDescription("Log the time accrued so far and keep the session running from now."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithString("todo_id_or_index", mcp.Required(), mcp.Description(todoRefDesc)),
		mcp.WithString("worklog_comment", mcp.Description("Worklog comment (default: 'Checkpoint on todo: <text>')")),
	), s.checkpointTodoWork)

	s.mcp.AddTool(mcp.NewTool("complete_todo_work",
		mcp.WithDescription("Finish the work session, log time and check the todo. Sessions spanning "+
			"calendar days or longer than 24h require an explicit time_spent_* value."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithString("todo_id_or_index", mcp.Required(), mcp.Description(todoRefDesc)),
		mcp.WithString("worklog_comment", mcp.Description("Worklog comment (default: 'Work on todo: <text>')")),
		mcp.WithBoolean("mark_completed", mcp.Description("Check the todo (default true)")),
		mcp.WithNumber("time_spent_hours", mcp.Description("Explicit time in hours, e.g. 8.5")),
		mcp.WithNumber("time_spent_minutes", mcp.Description("Explicit time in minutes")),
		mcp.WithNumber("time_spent_seconds", mcp.Description("Explicit time in seconds (takes precedence)")),
	), s.completeTodoWork)

	s.mcp.AddTool(mcp.NewTool("cancel_todo_work",
		mcp.WithDescription("Discard the work session without logging any time."),
		mcp.WithString("issue_key", mcp.Description(issueKeyDesc)),
		mcp.WithString("todo_id_or_index", mcp.Required(), mcp.Description(todoRefDesc)),
	), s.cancelTodoWork)

	s.mcp.AddTool(mcp.NewTool("get_active_work_sessions",
		mcp.WithDescription("List all running work sessions with their current duration."),
	), s.getActiveWorkSessions)

	s.mcp.AddTool(mcp.NewTool("get_todo_format",
		mcp.WithDescription("Returns the todo checklist format recognised in issue descriptions."),
	), s.getTodoFormat)

	s.mcp.AddResource(
		mcp.NewResource("raido://todo-format", "Todo Format",
			mcp.WithResourceDescription("Checklist format recognised in issue descriptions."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTodoFormatResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until ctx is done or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HTTPHandler returns a streamable HTTP transport for mounting on a router.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}
