package conversations

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-order-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-order-agent/server/internal/agent/model"
	"github.com/Chative-order-agent/server/internal/menu"
	"github.com/Chative-order-agent/server/internal/order"
)

func newManager(t *testing.T, maxTurns int) (*MessagesManager, *menu.Validator) {
	t.Helper()
	cat, err := menu.Build(menu.Definition{
		"Cookie": {BasePrice: 1.25, Type: "dessert"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := prompts.NewOrdering(model.PromptConfig{BusinessName: "Chative Burgers", BusinessType: "diner"}, cat)
	if err != nil {
		t.Fatal(err)
	}
	cfg := model.ConversationConfig{}
	cfg.History.MaxTurns = maxTurns
	return NewMessagesManager(p, cfg), menu.NewValidator(cat)
}

func TestBuildPlannerContext(t *testing.T) {
	mm, v := newManager(t, 2)
	s := model.NewSession("c1", "t1", time.Now())
	s.Location = "Main St"
	s.AddMessage(model.RoleAssistant, Welcome(s.Location))
	s.AddMessage(model.RoleUser, "a cookie please")
	s.AddMessage(model.RoleAssistant, "done")
	order.NewStore(v, &s.Order).AddLine("Cookie", nil)

	msgs, err := mm.BuildPlannerContext(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected system + 2 history + snapshot, got %d", len(msgs))
	}
	sys := msgs[0]
	if sys.Role != schema.System || !strings.Contains(sys.Content, "Chative Burgers") || !strings.Contains(sys.Content, "Main St") {
		t.Fatalf("system prompt not rendered: %q", sys.Content)
	}
	if !strings.Contains(sys.Content, `"Cookie"`) || !strings.Contains(sys.Content, "add_item") {
		t.Fatalf("system prompt misses menu or functions")
	}
	if msgs[1].Role != schema.User || msgs[2].Role != schema.Assistant {
		t.Fatalf("history not trimmed to the tail: %v, %v", msgs[1].Role, msgs[2].Role)
	}
	last := msgs[3]
	if last.Role != schema.System || !strings.Contains(last.Content, s.Order.Lines[0].ID) {
		t.Fatalf("order snapshot missing line id: %q", last.Content)
	}
}

func TestWelcome(t *testing.T) {
	if got := Welcome("Main St"); got != "Welcome to Main St, what can I get started for you?" {
		t.Fatalf("unexpected welcome %q", got)
	}
	if got := Welcome("  "); !strings.HasPrefix(got, "Welcome,") {
		t.Fatalf("unexpected welcome %q", got)
	}
}

func TestOrderSnapshotEmpty(t *testing.T) {
	got, err := OrderSnapshot(&order.Order{})
	if err != nil || got != "Current order: empty." {
		t.Fatalf("unexpected snapshot %q, %v", got, err)
	}
}
