package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-order-agent/server/internal/agent/graph/tools"
	"github.com/Chative-order-agent/server/internal/agent/model"
	"github.com/Chative-order-agent/server/internal/menu"
)

//go:embed template/ordering_prompt.txt
var orderingSystemPrompt string

// Ordering renders the planner system prompt. The menu section is computed
// once; only the location varies per conversation.
type Ordering struct {
	config   model.PromptConfig
	menuJSON string
	tpl      prompt.ChatTemplate
}

func NewOrdering(config model.PromptConfig, catalog *menu.Catalog) (*Ordering, error) {
	b, err := json.MarshalIndent(catalog.Definition(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal menu definition: %w", err)
	}
	return &Ordering{
		config:   config,
		menuJSON: string(b),
		tpl: prompt.FromMessages(
			schema.GoTemplate,
			schema.SystemMessage(orderingSystemPrompt),
		),
	}, nil
}

// Render renders the system prompt via the Eino prompt component so prompt
// callbacks fire.
func (p *Ordering) Render(ctx context.Context, location string) (string, error) {
	vars := map[string]any{
		"BusinessType": p.config.BusinessType,
		"BusinessName": p.config.BusinessName,
		"Location":     location,
		"ListTool":     tools.ToolListItems,
		"AddTool":      tools.ToolAddItem,
		"ModifyTool":   tools.ToolModifyItem,
		"RemoveTool":   tools.ToolRemoveItem,
		"Menu":         p.menuJSON,
	}
	msgs, err := p.tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("ordering prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("ordering prompt render: empty result")
	}
	return msgs[0].Content, nil
}
