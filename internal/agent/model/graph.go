package model

import (
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-order-agent/server/internal/menu"
	"github.com/Chative-order-agent/server/internal/order"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers or compose.ProcessState.
//   - Session is owned by the caller holding the conversation lock for the
//     whole invocation, so the graph is its only writer.
type AppState struct {
	Session       *Session
	RunID         string
	History       []*schema.Message // planner transcript of this correction loop
	Rounds        int               // dispatch rounds executed
	LimitReached  bool              // wrap-up notice has been sent to the planner
	LimitExceeded bool              // planner still proposed calls after the cap
	ToolCallIDSeq int               // local sequence to synthesize tool_call_id when provider omits

	// Accumulated total planner cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// ChatInput is the graph input for one customer turn.
type ChatInput struct {
	Session *Session
	Message string
	RunID   string
}

// ChatRequest is the public input of Runner.Chat.
type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
	Location       string `json:"location,omitempty"`
}

// ChatResponse is the public result of one turn.
type ChatResponse struct {
	ConversationID string                      `json:"conversationId"`
	Reply          string                      `json:"reply"`
	Order          order.Order                 `json:"order"`
	Messages       []ChatMessage               `json:"messages"`
	Violations     map[string][]menu.Violation `json:"violations,omitempty"`
	Total          float64                     `json:"total"`
	LimitExceeded  bool                        `json:"limitExceeded"`
}
