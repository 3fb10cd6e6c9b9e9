package mcpserver

// TodoFormatContract describes the checklist format recognised in issue
// descriptions and how the work-session tools treat it.
const TodoFormatContract = `# Raido Todo Format

Todos are Markdown checkbox lines anywhere in an issue description.

## Recognised lines

` + "```" + `markdown
- [ ] open task
- [x] finished task
* [ ] asterisk bullets work too
* [X] upper-case X counts as checked
` + "```" + `

Leading indentation is ignored. The text after the closing bracket must not be
empty. Every other line of the description is left untouched by edits.

## Adding todos

` + "`" + `add_todo` + "`" + ` inserts ` + "`" + `- [ ] <text>` + "`" + `:

1. after the last todo (or before the first with ` + "`" + `prepend` + "`" + `), if any todo exists;
2. otherwise below the first header named like ` + "`" + `## Todos` + "`" + `, ` + "`" + `# TODO` + "`" + `, ` + "`" + `Todos:` + "`" + ` or ` + "`" + `**Todos**` + "`" + `;
3. otherwise in a new ` + "`" + `## Todos` + "`" + ` section at the end.

## Referring to a todo

- its id from ` + "`" + `list_todos` + "`" + ` (` + "`" + `todo-` + "`" + ` followed by 16 hex characters),
- its 1-based position among the todos, or
- its exact text (case-insensitive, must be unique).

Ids are derived from the text and line position, so they change when lines
above the todo are added or removed. List todos again after editing.

## Work sessions

- ` + "`" + `start_todo_work` + "`" + ` begins a timer; a todo has at most one running session and shows as ` + "`" + `wip` + "`" + `.
- ` + "`" + `pause_todo_work` + "`" + ` logs the elapsed time and stops the timer.
- ` + "`" + `checkpoint_todo_work` + "`" + ` logs the elapsed time and keeps the timer running.
- ` + "`" + `complete_todo_work` + "`" + ` logs the time and checks the box.
- ` + "`" + `cancel_todo_work` + "`" + ` stops the timer without logging anything.

Sessions that cross midnight or run longer than 24 hours cannot be completed
without an explicit ` + "`" + `time_spent_seconds` + "`" + `, ` + "`" + `time_spent_minutes` + "`" + ` or ` + "`" + `time_spent_hours` + "`" + `.
Running sessions are checkpointed automatically at a fixed interval.
`
