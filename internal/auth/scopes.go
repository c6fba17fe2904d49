package auth

// Known OAuth scopes used by the workout-log API.
const (
	ScopeLogsWrite = "logs:write"
	ScopeLogsRead  = "logs:read"
)
