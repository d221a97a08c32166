package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-order-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-order-agent/server/internal/agent/graph/tools"
	"github.com/Chative-order-agent/server/internal/agent/model"
	"github.com/Chative-order-agent/server/internal/menu"
	"github.com/Chative-order-agent/server/internal/order"
	logx "github.com/Chative-order-agent/server/pkg/logger"
)

const ExtraLimitExceeded = "correction_limit_exceeded"

// NewInputConverterPreHandler binds the session to the graph state and resets
// per-turn counters.
func NewInputConverterPreHandler() func(context.Context, model.ChatInput, *model.AppState) (model.ChatInput, error) {
	return func(ctx context.Context, in model.ChatInput, s *model.AppState) (model.ChatInput, error) {
		if in.Session == nil {
			return in, fmt.Errorf("chat input has no session")
		}
		s.Session = in.Session
		s.RunID = in.RunID
		s.History = nil
		s.Rounds = 0
		s.LimitReached = false
		s.LimitExceeded = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode records the customer message and builds the planner context.
func NewInputConverterNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.ChatInput) ([]*schema.Message, error) {
		input.Session.AddMessage(model.RoleUser, strings.TrimSpace(input.Message))

		messages, err := mm.BuildPlannerContext(ctx, input.Session)
		if err != nil {
			return nil, fmt.Errorf("build planner context: %w", err)
		}
		return messages, nil
	})
}

// NewPlannerPreHandler feeds the accumulated transcript to the planner and
// appends a wrap-up notice once the round cap is hit.
func NewPlannerPreHandler(maxRounds int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		state.History = append(state.History, in...)

		if checkAndMarkRoundLimit(state, maxRounds) {
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have used all %d correction rounds for this turn. "+
						"Do not call any more functions. Reply to the customer now using the function results you already have, "+
						"and tell them which order lines still need their input.",
					NormalizeMaxRounds(maxRounds),
				),
			}
			state.History = append(state.History, wrapUp)
		}

		logx.Ctx(ctx).Debug().Int("round", state.Rounds).Msg("Planner thinking...")
		return state.History, nil
	}
}

// NewPlannerPostHandler records usage cost, fills missing tool call ids and
// appends the planner output to the transcript.
func NewPlannerPostHandler(modelName string, trackCost bool) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("planner returned no message")
		}

		if trackCost && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost"] = map[string]any{
				"currency":          "USD",
				"model":             modelName,
				"prompt_tokens":     out.ResponseMeta.Usage.PromptTokens,
				"completion_tokens": out.ResponseMeta.Usage.CompletionTokens,
				"total_tokens":      out.ResponseMeta.Usage.TotalTokens,
				"input_cost":        inC,
				"output_cost":       outC,
				"total_cost":        totalC,
			}
			logx.Ctx(ctx).Debug().
				Str("node", NodePlanner).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")

			state.TotalCostUSD += totalC
			out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
		}

		// Some providers omit tool call ids; results are matched back by id.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)
		return out, nil
	}
}

// NewDispatchCondition routes planner output with function calls to the
// dispatcher while rounds remain, and everything else to the finalizer.
func NewDispatchCondition(maxRounds int) func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		if len(input.ToolCalls) == 0 {
			logx.Ctx(ctx).Debug().Msg("No function calls - finalizing")
			return NodeFinalizer, nil
		}

		next := NodeDispatcher
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			if !roundsLeft(state, maxRounds) {
				state.LimitExceeded = true
				next = NodeFinalizer
			}
			return nil
		})
		if err != nil {
			return "", err
		}

		if next == NodeFinalizer {
			logx.Ctx(ctx).Warn().
				Int("function_calls", len(input.ToolCalls)).
				Int("max_rounds", NormalizeMaxRounds(maxRounds)).
				Msg("Correction limit exceeded - finalizing with outstanding violations")
		} else {
			logx.Ctx(ctx).Debug().Int("function_calls", len(input.ToolCalls)).Msg("Routing to FunctionDispatcher")
		}
		return next, nil
	}
}

// NewDispatcherPreHandler counts correction rounds.
func NewDispatcherPreHandler() func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		state.Rounds++
		logx.Ctx(ctx).Debug().
			Int("round", state.Rounds).
			Int("function_calls", len(in.ToolCalls)).
			Msg("Dispatch round")
		return in, nil
	}
}

// NewDispatcherNode applies the planner's function calls to the session order
// and answers each one with a tool message carrying its call id.
func NewDispatcherNode(validator *menu.Validator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) ([]*schema.Message, error) {
		calls := make([]tools.Call, 0, len(in.ToolCalls))
		for _, tc := range in.ToolCalls {
			calls = append(calls, tools.Call{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}

		var results []tools.Result
		err := compose.ProcessState(ctx, func(ctx context.Context, state *model.AppState) error {
			if state.Session == nil {
				return fmt.Errorf("missing session in state")
			}
			d := tools.NewDispatcher(validator, &state.Session.Order)
			results = d.DispatchAll(ctx, calls)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		out := make([]*schema.Message, 0, len(results))
		for i, r := range results {
			out = append(out, schema.ToolMessage(r.String(), r.CallID, schema.WithToolName(calls[i].Name)))
		}
		return out, nil
	})
}

// NewFinalizerNode records the assistant reply on the session. When the loop
// ended at the cap the planner's text is discarded, since its calls were never
// applied, and the reply lists what is still wrong with the order. The same
// summary is used when the planner gave no text.
func NewFinalizerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		var out *schema.Message
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			if state.Session == nil {
				return fmt.Errorf("missing session in state")
			}
			reply := strings.TrimSpace(in.Content)
			if state.LimitExceeded || reply == "" {
				reply = fallbackReply(&state.Session.Order, state.LimitExceeded)
			}
			state.Session.AddMessage(model.RoleAssistant, reply)

			out = schema.AssistantMessage(reply, nil)
			out.ResponseMeta = in.ResponseMeta
			out.Extra = map[string]any{
				ExtraLimitExceeded:     state.LimitExceeded,
				"rounds":               state.Rounds,
				"usage_cost_total_usd": state.TotalCostUSD,
			}
			if state.LimitExceeded {
				logx.Ctx(ctx).Warn().
					Int("rounds", state.Rounds).
					Interface("violations", order.Outstanding(&state.Session.Order)).
					Msg("CorrectionLimitExceeded")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

func fallbackReply(o *order.Order, limitExceeded bool) string {
	var b strings.Builder
	if limitExceeded {
		b.WriteString("I wasn't able to finish updating your order.")
	} else {
		b.WriteString("Here is your order so far.")
	}
	var issues []string
	for _, l := range o.Lines {
		if l.Valid {
			continue
		}
		parts := make([]string, 0, len(l.Violations))
		for _, v := range l.Violations {
			parts = append(parts, v.String())
		}
		issues = append(issues, fmt.Sprintf("%s: %s", l.ItemName, strings.Join(parts, ", ")))
	}
	if len(issues) > 0 {
		b.WriteString(" Still to fix: ")
		b.WriteString(strings.Join(issues, "; "))
		b.WriteString(".")
	} else {
		fmt.Fprintf(&b, " Your total is %.2f.", order.Total(o))
	}
	return b.String()
}
