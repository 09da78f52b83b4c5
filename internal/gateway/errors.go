package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

// errorFrame is the machine-readable error payload returned to clients.
// Batch item errors use the same code vocabulary.
type errorFrame struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

type errorData struct {
	Service      string `json:"service,omitempty"`
	RetryAfterMS int64  `json:"retry_after,omitempty"`
	Details      string `json:"error_details,omitempty"`
}

func frameOf(err error) errorFrame {
	frame := errorFrame{
		Code:    string(errs.CodeOf(err)),
		Message: err.Error(),
	}
	var e *errs.Error
	if errors.As(err, &e) {
		data := errorData{Service: e.Service, Details: e.Details}
		if e.RetryAfter != nil {
			data.RetryAfterMS = e.RetryAfter.Milliseconds()
		}
		if data != (errorData{}) {
			frame.Data = &data
		}
	}
	return frame
}

// errorResult renders err as a failed tool call. The body is JSON so
// clients can branch on the code without parsing prose.
func errorResult(err error) *mcp.CallToolResult {
	frame := frameOf(err)
	body, marshalErr := json.Marshal(frame)
	if marshalErr != nil {
		body = []byte(fmt.Sprintf(`{"code":%q,"message":"error serialization failed"}`, frame.Code))
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}
}
