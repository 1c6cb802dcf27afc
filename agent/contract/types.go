package contract

// ToolRequest is one tool invocation chosen by the planner.
type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the uniform envelope every tool returns. Code is a
// stable machine-readable outcome tag, Message a short line suitable
// for direct display, Data the structured fields a follow-up call may
// need (ids, balances, candidate lists). Tool failures are ok:false
// envelopes, never Go errors: the planner must always receive a result
// it can reason about.
type ToolResult struct {
	Tool    string         `json:"tool"`
	OK      bool           `json:"ok"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK builds a success envelope.
func OK(tool, code, message string, data map[string]any) ToolResult {
	return ToolResult{Tool: tool, OK: true, Code: code, Message: message, Data: data}
}

// Fail builds a failure envelope.
func Fail(tool, code, message string, data map[string]any) ToolResult {
	return ToolResult{Tool: tool, OK: false, Code: code, Message: message, Data: data}
}
