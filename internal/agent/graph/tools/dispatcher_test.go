package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Chative-order-agent/server/internal/menu"
	"github.com/Chative-order-agent/server/internal/order"
)

func testValidator(t *testing.T) *menu.Validator {
	t.Helper()
	cat, err := menu.Build(menu.Definition{
		"Sweet Potato Fries": {
			BasePrice: 3.00,
			Options: map[string]menu.OptionDefinition{
				"size": {
					Required:      true,
					AllowedValues: []string{"small", "medium", "large"},
					PriceDeltas:   map[string]float64{"medium": 1.00, "large": 1.50},
				},
			},
		},
		"Cheeseburger": {
			BasePrice: 6.50,
			Options: map[string]menu.OptionDefinition{
				"toppings": {
					AllowedValues: []string{"bacon", "onion", "pickles"},
					PriceDeltas:   map[string]float64{"bacon": 1.25},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return menu.NewValidator(cat)
}

func linePayload(t *testing.T, r Result) order.Line {
	t.Helper()
	p, ok := r.Payload.(LinePayload)
	if !ok {
		t.Fatalf("expected LinePayload, got %T", r.Payload)
	}
	return p.Line
}

func TestDispatchFriesCorrection(t *testing.T) {
	ctx := context.Background()
	o := &order.Order{}
	d := NewDispatcher(testValidator(t), o)

	added := d.Dispatch(ctx, Call{ID: "call_1", Name: ToolAddItem, Arguments: `{"itemName":"Sweet Potato Fries"}`})
	if added.CallID != "call_1" || added.Success {
		t.Fatalf("expected failed add for call_1, got %+v", added)
	}
	if len(added.Violations) != 1 || added.Violations[0].Kind != menu.MissingRequiredOption {
		t.Fatalf("expected MissingRequiredOption, got %v", added.Violations)
	}
	line := linePayload(t, added)

	args, _ := json.Marshal(map[string]any{"lineId": line.ID, "optionKeys": []string{"size"}, "optionValues": [][]string{{"medium"}}})
	fixed := d.Dispatch(ctx, Call{ID: "call_2", Name: ToolModifyItem, Arguments: string(args)})
	if !fixed.Success || len(fixed.Violations) != 0 {
		t.Fatalf("expected success, got %+v", fixed)
	}
	if got := linePayload(t, fixed); got.Price != 4.00 || got.ID != line.ID {
		t.Fatalf("expected %s at 4.00, got %+v", line.ID, got)
	}
}

func TestDispatchUnknownFunction(t *testing.T) {
	o := &order.Order{}
	d := NewDispatcher(testValidator(t), o)
	r := d.Dispatch(context.Background(), Call{ID: "x", Name: "place_order", Arguments: `{}`})
	if r.Success || r.CallID != "x" {
		t.Fatalf("unexpected result %+v", r)
	}
	if len(r.Violations) != 1 || r.Violations[0].Kind != menu.UnsupportedFunction || r.Violations[0].Value != "place_order" {
		t.Fatalf("expected UnsupportedFunction, got %v", r.Violations)
	}
	for _, name := range Names() {
		if !strings.Contains(r.Violations[0].Message, name) {
			t.Fatalf("message should list %s, got %q", name, r.Violations[0].Message)
		}
	}
	if len(o.Lines) != 0 {
		t.Fatalf("order must be untouched")
	}
}

func TestDispatchArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		call Call
		kind menu.ViolationKind
	}{
		{"malformed json", Call{Name: ToolAddItem, Arguments: `{"itemName":`}, menu.InvalidArguments},
		{"missing item", Call{Name: ToolAddItem, Arguments: `{}`}, menu.InvalidArguments},
		{"missing line id", Call{Name: ToolRemoveItem, Arguments: `{}`}, menu.InvalidArguments},
		{"unknown line", Call{Name: ToolRemoveItem, Arguments: `{"lineId":"nope"}`}, menu.LineNotFound},
		{"modify unknown line", Call{Name: ToolModifyItem, Arguments: `{"lineId":"nope","options":{"size":"large"}}`}, menu.LineNotFound},
		{"values without keys", Call{Name: ToolAddItem, Arguments: `{"itemName":"Cheeseburger","optionKeys":[],"optionValues":[["bacon"]]}`}, menu.InvalidArguments},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDispatcher(testValidator(t), &order.Order{})
			r := d.Dispatch(context.Background(), tc.call)
			if r.Success {
				t.Fatalf("expected failure")
			}
			if len(r.Violations) != 1 || r.Violations[0].Kind != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, r.Violations)
			}
		})
	}
}

func TestDispatchArgumentForms(t *testing.T) {
	ctx := context.Background()
	o := &order.Order{}
	d := NewDispatcher(testValidator(t), o)

	// options object with a scalar value, and a trimmed item name
	r := d.Dispatch(ctx, Call{ID: "1", Name: ToolAddItem, Arguments: `{"itemName":"  sweet potato fries ","options":{"size":"large"}}`})
	if !r.Success || linePayload(t, r).Price != 4.50 {
		t.Fatalf("expected valid large fries, got %+v", r)
	}

	r = d.Dispatch(ctx, Call{ID: "2", Name: ToolAddItem, Arguments: `{"itemName":"Cheeseburger","optionKeys":["toppings"],"optionValues":[["bacon","onion"]]}`})
	if !r.Success || linePayload(t, r).Price != 7.75 {
		t.Fatalf("expected 7.75 burger, got %+v", r)
	}
	burger := linePayload(t, r).ID

	// orderId alias
	r = d.Dispatch(ctx, Call{ID: "3", Name: ToolRemoveItem, Arguments: `{"orderId":"` + burger + `"}`})
	if !r.Success {
		t.Fatalf("expected removal via orderId, got %+v", r)
	}
	if len(o.Lines) != 1 {
		t.Fatalf("expected 1 line left, got %d", len(o.Lines))
	}
}

func TestListItemsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(testValidator(t), &order.Order{})
	d.Dispatch(ctx, Call{ID: "1", Name: ToolAddItem, Arguments: `{"itemName":"Cheeseburger"}`})
	d.Dispatch(ctx, Call{ID: "2", Name: ToolAddItem, Arguments: `{"itemName":"Veggie Burger"}`})

	a := d.Dispatch(ctx, Call{ID: "l", Name: ToolListItems, Arguments: `{}`}).String()
	b := d.Dispatch(ctx, Call{ID: "l", Name: ToolListItems, Arguments: ``}).String()
	if a != b {
		t.Fatalf("list payload changed without mutation:\n%s\n%s", a, b)
	}

	limited := d.Dispatch(ctx, Call{ID: "l", Name: ToolListItems, Arguments: `{"limit":"1"}`})
	if p := limited.Payload.(ListPayload); len(p.Lines) != 1 || p.Committed {
		t.Fatalf("expected one line of an uncommitted order, got %+v", p)
	}
}

func TestDispatchAllKeepsIssuanceOrder(t *testing.T) {
	o := &order.Order{}
	d := NewDispatcher(testValidator(t), o)
	results := d.DispatchAll(context.Background(), []Call{
		{ID: "b", Name: ToolAddItem, Arguments: `{"itemName":"Cheeseburger"}`},
		{ID: "a", Name: "nope"},
		{ID: "c", Name: ToolListItems},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, id := range []string{"b", "a", "c"} {
		if results[i].CallID != id {
			t.Fatalf("result %d answers %s, want %s", i, results[i].CallID, id)
		}
	}
	if p := results[2].Payload.(ListPayload); len(p.Lines) != 1 {
		t.Fatalf("list should see the earlier add, got %+v", p)
	}
}

func TestResultEnvelopeShape(t *testing.T) {
	r := Result{CallID: "call_9", Success: false, Violations: []menu.Violation{{Kind: menu.InvalidChoice, OptionKey: "size", Value: "huge"}}}
	var raw map[string]any
	if err := json.Unmarshal([]byte(r.String()), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["callId"] != "call_9" || raw["success"] != false {
		t.Fatalf("unexpected envelope %v", raw)
	}
	if _, ok := raw["payload"]; ok {
		t.Fatalf("payload should be omitted when empty")
	}
	if len(raw["violations"].([]any)) != 1 {
		t.Fatalf("expected one violation")
	}
}

func TestToolInfos(t *testing.T) {
	infos := ToolInfos()
	if len(infos) != len(Names()) {
		t.Fatalf("expected %d tool infos, got %d", len(Names()), len(infos))
	}
	for i, name := range Names() {
		if infos[i].Name != name {
			t.Fatalf("tool %d is %s, want %s", i, infos[i].Name, name)
		}
		if infos[i].ParamsOneOf == nil {
			t.Fatalf("%s has no parameters", name)
		}
	}
}
