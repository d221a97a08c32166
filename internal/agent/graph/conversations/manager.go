package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-order-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-order-agent/server/internal/agent/model"
	"github.com/Chative-order-agent/server/internal/order"
)

const defaultMaxTurns = 20

type MessagesManager struct {
	prompt   *prompts.Ordering
	maxTurns int
}

func NewMessagesManager(prompt *prompts.Ordering, config model.ConversationConfig) *MessagesManager {
	maxTurns := config.History.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &MessagesManager{prompt: prompt, maxTurns: maxTurns}
}

// Welcome is the first assistant message of a conversation started at location.
func Welcome(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return "Welcome, what can I get started for you?"
	}
	return fmt.Sprintf("Welcome to %s, what can I get started for you?", location)
}

// BuildPlannerContext assembles the messages sent to the planner at the start
// of a correction loop: system prompt, recent history, current order.
func (cm *MessagesManager) BuildPlannerContext(ctx context.Context, session *model.Session) ([]*schema.Message, error) {
	systemPrompt, err := cm.prompt.Render(ctx, session.Location)
	if err != nil {
		return nil, err
	}

	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	for _, m := range trimTail(session.Messages, cm.maxTurns) {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			messages = append(messages, schema.UserMessage(m.Content))
		case model.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		}
	}

	snapshot, err := OrderSnapshot(&session.Order)
	if err != nil {
		return nil, err
	}
	messages = append(messages, schema.SystemMessage(snapshot))
	return messages, nil
}

// OrderSnapshot renders the order as a system note so the planner knows the
// current line ids.
func OrderSnapshot(o *order.Order) (string, error) {
	if len(o.Lines) == 0 {
		return "Current order: empty.", nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("marshal order snapshot: %w", err)
	}
	return fmt.Sprintf("Current order (total %.2f): %s", order.Total(o), b), nil
}

// ====================== Helper function ======================
func trimTail(messages []model.ChatMessage, maxTurns int) []model.ChatMessage {
	if len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
