package tools

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/Chative-order-agent/server/internal/menu"
	"github.com/Chative-order-agent/server/internal/order"
	logx "github.com/Chative-order-agent/server/pkg/logger"
)

// Call is one function call proposed by the planner.
type Call struct {
	ID        string `json:"callId"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Result is the envelope returned to the planner for every Call, whether the
// operation succeeded or not.
type Result struct {
	CallID     string           `json:"callId"`
	Success    bool             `json:"success"`
	Payload    any              `json:"payload,omitempty"`
	Violations []menu.Violation `json:"violations,omitempty"`
}

// String renders the envelope as the tool message content.
func (r Result) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"callId":"` + r.CallID + `","success":false}`
	}
	return string(b)
}

// ListPayload is the payload of list_items.
type ListPayload struct {
	Lines     []order.Line `json:"lines"`
	Total     float64      `json:"total"`
	Committed bool         `json:"committed"`
}

// LinePayload is the payload of add_item and modify_item.
type LinePayload struct {
	Line order.Line `json:"line"`
}

// RemovePayload is the payload of remove_item.
type RemovePayload struct {
	Removed string `json:"removed"`
}

// Dispatcher routes planner function calls to the order store. It never
// fails at the process level; every problem becomes a violation.
type Dispatcher struct {
	store *order.Store
	o     *order.Order
}

func NewDispatcher(v *menu.Validator, o *order.Order) *Dispatcher {
	return &Dispatcher{store: order.NewStore(v, o), o: o}
}

// DispatchAll applies calls one by one in issuance order, so two calls that
// touch the same line resolve deterministically. Results are returned in the
// same order and carry the call id they answer.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []Call) []Result {
	out := make([]Result, 0, len(calls))
	for _, c := range calls {
		out = append(out, d.Dispatch(ctx, c))
	}
	return out
}

func (d *Dispatcher) Dispatch(ctx context.Context, call Call) Result {
	res := d.dispatch(call)
	res.CallID = call.ID

	l := logx.Ctx(ctx)
	ev := l.Debug()
	if !res.Success {
		ev = l.Warn()
	}
	ev.Str("call_id", call.ID).
		Str("function", call.Name).
		Bool("success", res.Success).
		Interface("violations", res.Violations).
		Msg("Function call dispatched")
	return res
}

func (d *Dispatcher) dispatch(call Call) Result {
	if !slices.Contains(Names(), call.Name) {
		return failure(menu.Violation{
			Kind:    menu.UnsupportedFunction,
			Value:   call.Name,
			Message: "unknown function; use one of " + strings.Join(Names(), ", "),
		})
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return invalidArguments(err.Error())
	}

	switch call.Name {
	case ToolListItems:
		return Result{Success: true, Payload: ListPayload{
			Lines:     d.store.List(args.Limit),
			Total:     order.Total(d.o),
			Committed: order.Committed(d.o),
		}}

	case ToolAddItem:
		if args.ItemName == nil || *args.ItemName == "" {
			return invalidArguments("itemName is required")
		}
		line, vr := d.store.AddLine(*args.ItemName, args.Choices)
		return Result{Success: vr.Valid, Payload: LinePayload{Line: line}, Violations: vr.Violations}

	case ToolRemoveItem:
		if args.LineID == "" {
			return invalidArguments("lineId is required")
		}
		if err := d.store.RemoveLine(args.LineID); err != nil {
			return lineFailure(args.LineID, err)
		}
		return Result{Success: true, Payload: RemovePayload{Removed: args.LineID}}

	default: // ToolModifyItem
		if args.LineID == "" {
			return invalidArguments("lineId is required")
		}
		if args.ItemName != nil && *args.ItemName == "" {
			args.ItemName = nil
		}
		line, vr, err := d.store.ModifyLine(args.LineID, args.ItemName, args.Choices)
		if err != nil {
			return lineFailure(args.LineID, err)
		}
		return Result{Success: vr.Valid, Payload: LinePayload{Line: line}, Violations: vr.Violations}
	}
}

func failure(v ...menu.Violation) Result {
	return Result{Success: false, Violations: v}
}

func invalidArguments(msg string) Result {
	return failure(menu.Violation{Kind: menu.InvalidArguments, Message: msg})
}

func lineFailure(lineID string, err error) Result {
	if errors.Is(err, order.ErrLineNotFound) {
		return failure(menu.Violation{
			Kind:    menu.LineNotFound,
			Value:   lineID,
			Message: "no such line; call list_items for current line ids",
		})
	}
	return failure(menu.Violation{Kind: menu.InvalidArguments, Value: lineID, Message: err.Error()})
}
