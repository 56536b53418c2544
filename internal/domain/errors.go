package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrProtocolLimit reports that a question's tool-use loop exceeded the
// configured maximum number of rounds.
var ErrProtocolLimit = errors.New("tool-use rounds exceeded configured limit")

// UpstreamError reports a failure of the completion service: unreachable,
// non-2xx status, or a malformed response body.
type UpstreamError struct {
	Status  int // HTTP status, 0 when the request never completed
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion service error [%d]: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("completion service error: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Tool error codes carried inside tool_result payloads. These are shown to
// the model, not raised to the caller, so the conversation can self-correct.
const (
	ErrCodeUnknownTool = "unknown_tool"
	ErrCodeValidation  = "validation_error"
	ErrCodeOperation   = "operation_error"
)

// ToolError is the structured error payload of a failed tool invocation.
type ToolError struct {
	Code          string   `json:"code"`
	Message       string   `json:"message"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ToolErrorBlock builds an error tool_result block for the given invocation
// id. The payload is a JSON object under an "error" key.
func ToolErrorBlock(toolUseID string, te ToolError) ContentBlock {
	payload, _ := json.Marshal(map[string]ToolError{"error": te})
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: toolUseID,
		Content:   string(payload),
		IsError:   true,
	}
}
