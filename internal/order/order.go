package order

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/Chative-order-agent/server/internal/menu"
)

// ErrLineNotFound is returned when a line id does not exist in the order.
var ErrLineNotFound = errors.New("order line not found")

// Line is one item entry of an order together with its validation state.
type Line struct {
	ID           string           `json:"id"`
	ItemName     string           `json:"itemName"`
	OptionKeys   []string         `json:"optionKeys"`
	OptionValues [][]string       `json:"optionValues"`
	Price        float64          `json:"price"`
	Valid        bool             `json:"valid"`
	Violations   []menu.Violation `json:"violations,omitempty"`
}

// Choices rebuilds the validator input from the parallel key/value slices.
func (l Line) Choices() []menu.Choice {
	out := make([]menu.Choice, 0, len(l.OptionKeys))
	for i, k := range l.OptionKeys {
		var vals []string
		if i < len(l.OptionValues) {
			vals = append(vals, l.OptionValues[i]...)
		}
		out = append(out, menu.Choice{Key: k, Values: vals})
	}
	return out
}

func (l Line) clone() Line {
	c := l
	c.OptionKeys = append([]string{}, l.OptionKeys...)
	c.OptionValues = make([][]string, len(l.OptionValues))
	for i, vs := range l.OptionValues {
		c.OptionValues[i] = append([]string{}, vs...)
	}
	if l.Violations != nil {
		c.Violations = append([]menu.Violation(nil), l.Violations...)
	}
	return c
}

// Order is the ordered list of lines owned by one conversation.
// It serializes as a plain JSON array.
type Order struct {
	Lines []*Line
}

func (o Order) MarshalJSON() ([]byte, error) {
	lines := o.Lines
	if lines == nil {
		lines = []*Line{}
	}
	return json.Marshal(lines)
}

func (o *Order) UnmarshalJSON(b []byte) error {
	var lines []*Line
	if err := json.Unmarshal(b, &lines); err != nil {
		return err
	}
	o.Lines = lines
	return nil
}

func (o *Order) find(id string) (int, *Line) {
	id = strings.TrimSpace(id)
	for i, l := range o.Lines {
		if l.ID == id {
			return i, l
		}
	}
	return -1, nil
}

// Store applies validator-checked mutations to one order. A Store is not
// safe for concurrent use; the conversation lock serializes access.
type Store struct {
	validator *menu.Validator
	order     *Order
	newID     func() string
}

func NewStore(v *menu.Validator, o *Order) *Store {
	return &Store{validator: v, order: o, newID: uuid.NewString}
}

// AddLine always appends a new line, valid or not, and reports the verdict.
func (s *Store) AddLine(itemName string, choices []menu.Choice) (Line, menu.Result) {
	res := s.validator.Validate(itemName, choices)
	l := &Line{ID: s.newID()}
	s.apply(l, itemName, choices, res)
	s.order.Lines = append(s.order.Lines, l)
	return l.clone(), res
}

// RemoveLine deletes a line, leaving the order untouched when id is unknown.
func (s *Store) RemoveLine(id string) error {
	i, _ := s.order.find(id)
	if i < 0 {
		return ErrLineNotFound
	}
	s.order.Lines = append(s.order.Lines[:i], s.order.Lines[i+1:]...)
	return nil
}

// ModifyLine replaces the item name and/or the chosen options of a line and
// re-validates it. A nil itemName or nil choices keeps the current value.
func (s *Store) ModifyLine(id string, itemName *string, choices []menu.Choice) (Line, menu.Result, error) {
	_, l := s.order.find(id)
	if l == nil {
		return Line{}, menu.Result{}, ErrLineNotFound
	}
	name := l.ItemName
	if itemName != nil {
		name = *itemName
	}
	if choices == nil {
		choices = l.Choices()
	}
	res := s.validator.Validate(name, choices)
	s.apply(l, name, choices, res)
	return l.clone(), res, nil
}

// List returns copies of the lines in insertion order. limit <= 0 lists all.
func (s *Store) List(limit int) []Line {
	lines := s.order.Lines
	if limit > 0 && limit < len(lines) {
		lines = lines[:limit]
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.clone())
	}
	return out
}

// Outstanding returns the violations of every invalid line keyed by line id.
func (s *Store) Outstanding() map[string][]menu.Violation {
	return Outstanding(s.order)
}

// Outstanding returns the violations of every invalid line keyed by line id.
func Outstanding(o *Order) map[string][]menu.Violation {
	out := map[string][]menu.Violation{}
	for _, l := range o.Lines {
		if !l.Valid {
			out[l.ID] = append([]menu.Violation(nil), l.Violations...)
		}
	}
	return out
}

// Committed reports whether every line passes validation.
func Committed(o *Order) bool {
	for _, l := range o.Lines {
		if !l.Valid {
			return false
		}
	}
	return true
}

// Total sums the line prices.
func Total(o *Order) float64 {
	var sum float64
	for _, l := range o.Lines {
		sum += l.Price
	}
	return math.Round(sum*100) / 100
}

func (s *Store) apply(l *Line, itemName string, choices []menu.Choice, res menu.Result) {
	if it, ok := s.validator.Catalog().Lookup(itemName); ok {
		l.ItemName = it.Name
	} else {
		l.ItemName = strings.TrimSpace(itemName)
	}
	l.OptionKeys = make([]string, 0, len(choices))
	l.OptionValues = make([][]string, 0, len(choices))
	for _, c := range choices {
		l.OptionKeys = append(l.OptionKeys, strings.TrimSpace(c.Key))
		values := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		l.OptionValues = append(l.OptionValues, values)
	}
	l.Price = res.Price
	l.Valid = res.Valid
	l.Violations = res.Violations
}
