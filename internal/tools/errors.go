package tools

import "fmt"

// ErrToolUnavailable is reported when the catalog declares a tool but
// no handler was registered for it, usually because its collaborator
// (an API key, a search provider) is not configured.
type ErrToolUnavailable struct {
	ToolName string
	Reason   string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tool %q is not available: %s", e.ToolName, e.Reason)
	}
	return fmt.Sprintf("tool %q is not available", e.ToolName)
}
