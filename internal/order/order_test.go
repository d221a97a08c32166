package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Chative-order-agent/server/internal/menu"
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
					PriceDeltas:   map[string]float64{"small": 0, "medium": 1.00, "large": 1.50},
				},
			},
		},
		"Cookie": {BasePrice: 1.25},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return menu.NewValidator(cat)
}

func newTestStore(t *testing.T, o *Order) *Store {
	s := NewStore(testValidator(t), o)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
	return s
}

func ids(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.ID)
	}
	return out
}

func TestAddInvalidThenModifyToValidKeepsID(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)

	line, res := s.AddLine("Sweet Potato Fries", nil)
	if res.Valid {
		t.Fatalf("expected missing size")
	}
	if len(res.Violations) != 1 || res.Violations[0].Kind != menu.MissingRequiredOption || res.Violations[0].OptionKey != "size" {
		t.Fatalf("unexpected violations %v", res.Violations)
	}
	if len(s.List(0)) != 1 {
		t.Fatalf("invalid line must still be stored")
	}

	fixed, res, err := s.ModifyLine(line.ID, nil, []menu.Choice{{Key: "size", Values: []string{"medium"}}})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if !res.Valid || fixed.Price != 4.00 {
		t.Fatalf("expected valid 4.00, got %+v", res)
	}
	if fixed.ID != line.ID {
		t.Fatalf("id changed from %s to %s", line.ID, fixed.ID)
	}
	if !Committed(o) {
		t.Fatalf("order should be committed")
	}
}

func TestAddUnknownItemIsTolerated(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)

	line, res := s.AddLine("Veggie Burger", nil)
	if len(res.Violations) != 1 || res.Violations[0].Kind != menu.ItemNotFound {
		t.Fatalf("expected ItemNotFound, got %v", res.Violations)
	}
	listed := s.List(0)
	if len(listed) != 1 || listed[0].ID != line.ID || listed[0].Valid {
		t.Fatalf("expected one invalid listed line, got %+v", listed)
	}
	if _, ok := s.Outstanding()[line.ID]; !ok {
		t.Fatalf("outstanding violations missing for %s", line.ID)
	}
}

func TestRemoveUnknownLeavesOrderUnchanged(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)
	s.AddLine("Cookie", nil)
	s.AddLine("Sweet Potato Fries", []menu.Choice{{Key: "size", Values: []string{"large"}}})
	before := ids(s.List(0))

	if err := s.RemoveLine("nope"); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	after := ids(s.List(0))
	if len(after) != len(before) {
		t.Fatalf("length changed")
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestListReflectsSurvivorsInInsertionOrder(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)
	for i := 0; i < 5; i++ {
		s.AddLine("Cookie", nil)
	}
	if err := s.RemoveLine("line-2"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveLine("line-4"); err != nil {
		t.Fatal(err)
	}
	name := "Sweet Potato Fries"
	if _, _, err := s.ModifyLine("line-3", &name, []menu.Choice{{Key: "size", Values: []string{"small"}}}); err != nil {
		t.Fatal(err)
	}
	s.AddLine("Cookie", nil)

	got := ids(s.List(0))
	want := []string{"line-1", "line-3", "line-5", "line-6"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if s.List(2)[1].ID != "line-3" || len(s.List(2)) != 2 {
		t.Fatalf("limit not applied")
	}
	if s.List(0)[1].ItemName != "Sweet Potato Fries" {
		t.Fatalf("modify did not replace item name")
	}
}

func TestModifyKeepsOptionsWhenOmitted(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)
	line, _ := s.AddLine("sweet potato fries", []menu.Choice{{Key: "size", Values: []string{"large"}}})
	if line.ItemName != "Sweet Potato Fries" {
		t.Fatalf("expected canonical item name, got %q", line.ItemName)
	}
	name := "Cookie"
	got, res, err := s.ModifyLine(line.ID, &name, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatalf("cookie has no size option, expected UnknownOption")
	}
	if len(got.OptionKeys) != 1 || got.OptionKeys[0] != "size" {
		t.Fatalf("options should have been kept, got %v", got.OptionKeys)
	}
}

func TestModifyUnknownLine(t *testing.T) {
	s := newTestStore(t, &Order{})
	if _, _, err := s.ModifyLine("missing", nil, nil); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestListReturnsCopies(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)
	s.AddLine("Sweet Potato Fries", []menu.Choice{{Key: "size", Values: []string{"small"}}})
	listed := s.List(0)
	listed[0].OptionValues[0][0] = "large"
	if o.Lines[0].OptionValues[0][0] != "small" {
		t.Fatalf("list leaked internal state")
	}
}

func TestOrderSnapshotShape(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)
	s.AddLine("Sweet Potato Fries", []menu.Choice{{Key: "size", Values: []string{"large"}}})

	b, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("order should serialize as an array: %v", err)
	}
	for _, k := range []string{"id", "itemName", "optionKeys", "optionValues", "price"} {
		if _, ok := raw[0][k]; !ok {
			t.Fatalf("missing %q in %s", k, b)
		}
	}
	if Total(o) != 4.5 {
		t.Fatalf("expected total 4.50, got %.2f", Total(o))
	}

	empty, _ := json.Marshal(&Order{})
	if string(empty) != "[]" {
		t.Fatalf("empty order should be [], got %s", empty)
	}
}

func TestStoredChoicesMatchValidatedChoices(t *testing.T) {
	o := &Order{}
	s := newTestStore(t, o)
	line, res := s.AddLine("Sweet Potato Fries", []menu.Choice{{Key: " size ", Values: []string{" medium "}}})
	if !res.Valid {
		t.Fatalf("expected padded choice to validate, got %v", res.Violations)
	}
	if line.OptionKeys[0] != "size" || line.OptionValues[0][0] != "medium" {
		t.Fatalf("stored choice not trimmed: %q=%q", line.OptionKeys[0], line.OptionValues[0][0])
	}
	if o.Lines[0].OptionValues[0][0] != "medium" {
		t.Fatalf("order snapshot holds %q", o.Lines[0].OptionValues[0][0])
	}
}
