package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Chative-order-agent/server/internal/menu"
)

// arguments is the sanitized form of a function call's JSON arguments.
type arguments struct {
	ItemName *string
	LineID   string
	Choices  []menu.Choice // nil when the call carried no options at all
	Limit    int
}

// parseArguments best-effort sanitizes the planner's arguments: strings are
// trimmed, scalars are coerced to lists, and known aliases are accepted.
func parseArguments(raw string) (arguments, error) {
	var a arguments
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return a, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return a, fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	if v, ok := first(m, "itemName", "item_name", "item"); ok {
		name := toString(v)
		a.ItemName = &name
	}
	if v, ok := first(m, "lineId", "line_id", "orderId", "order_id"); ok {
		a.LineID = toString(v)
	}
	if v, ok := m["limit"]; ok {
		switch vv := v.(type) {
		case float64:
			a.Limit = int(vv)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
				a.Limit = n
			}
		}
		if a.Limit < 0 {
			a.Limit = 0
		}
	}

	keys, hasKeys := m["optionKeys"]
	if hasKeys {
		choices, err := parallelChoices(keys, m["optionValues"])
		if err != nil {
			return a, err
		}
		a.Choices = choices
	}
	if opts, ok := m["options"]; ok && opts != nil {
		choices, err := objectChoices(opts)
		if err != nil {
			return a, err
		}
		a.Choices = append(a.Choices, choices...)
		if a.Choices == nil {
			a.Choices = []menu.Choice{}
		}
	}
	return a, nil
}

func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toString(v any) string {
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// toStrings coerces a scalar or a list into a list of trimmed strings.
func toStrings(v any) []string {
	switch vv := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			out = append(out, toString(e))
		}
		return out
	default:
		return []string{toString(vv)}
	}
}

// parallelChoices reads the optionKeys / optionValues pair.
func parallelChoices(keysRaw, valuesRaw any) ([]menu.Choice, error) {
	keys := toStrings(keysRaw)
	var values []any
	switch vv := valuesRaw.(type) {
	case nil:
	case []any:
		values = vv
	default:
		return nil, fmt.Errorf("optionValues must be a list")
	}
	if len(values) > len(keys) {
		return nil, fmt.Errorf("optionValues has %d entries for %d optionKeys", len(values), len(keys))
	}
	out := make([]menu.Choice, 0, len(keys))
	for i, k := range keys {
		var vals []string
		if i < len(values) {
			vals = toStrings(values[i])
		}
		out = append(out, menu.Choice{Key: k, Values: vals})
	}
	return out, nil
}

// objectChoices reads {"size": "large", "toppings": ["bacon"]}, in key order.
func objectChoices(raw any) ([]menu.Choice, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("options must be an object of option key to values")
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]menu.Choice, 0, len(keys))
	for _, k := range keys {
		out = append(out, menu.Choice{Key: strings.TrimSpace(k), Values: toStrings(obj[k])})
	}
	return out, nil
}
