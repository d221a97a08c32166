package menu

import (
	"fmt"
	"math"
	"strings"
)

// ViolationKind names a reason a proposed order line is not admissible.
type ViolationKind string

const (
	ItemNotFound          ViolationKind = "ItemNotFound"
	MissingRequiredOption ViolationKind = "MissingRequiredOption"
	UnknownOption         ViolationKind = "UnknownOption"
	InvalidChoice         ViolationKind = "InvalidChoice"
	TooFewChoices         ViolationKind = "TooFewChoices"
	TooManyChoices        ViolationKind = "TooManyChoices"

	// Reported by the order store and the function dispatcher.
	LineNotFound        ViolationKind = "LineNotFound"
	UnsupportedFunction ViolationKind = "UnsupportedFunction"
	InvalidArguments    ViolationKind = "InvalidArguments"
)

// Violation is one typed, planner-readable problem.
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	OptionKey string        `json:"optionKey,omitempty"`
	Value     string        `json:"value,omitempty"`
	Message   string        `json:"message,omitempty"`
}

func (v Violation) String() string {
	switch {
	case v.OptionKey != "" && v.Value != "":
		return fmt.Sprintf("%s(%s=%s)", v.Kind, v.OptionKey, v.Value)
	case v.OptionKey != "":
		return fmt.Sprintf("%s(%s)", v.Kind, v.OptionKey)
	case v.Value != "":
		return fmt.Sprintf("%s(%s)", v.Kind, v.Value)
	default:
		return string(v.Kind)
	}
}

// Choice is the set of values picked for one option key.
type Choice struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// Result is the verdict for one proposed line. Price is always populated:
// for invalid lines it is the best-effort sum of the recognised parts.
type Result struct {
	Valid      bool        `json:"valid"`
	Price      float64     `json:"price"`
	Violations []Violation `json:"violations,omitempty"`
}

// Validator checks proposed lines against a catalog. It holds no mutable
// state and performs no I/O.
type Validator struct {
	catalog *Catalog
}

func NewValidator(catalog *Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Catalog returns the catalog the validator checks against.
func (v *Validator) Catalog() *Catalog {
	return v.catalog
}

// Validate aggregates every violation of (itemName, choices) into one result.
func (v *Validator) Validate(itemName string, choices []Choice) Result {
	item, ok := v.catalog.Lookup(itemName)
	if !ok {
		return Result{
			Violations: []Violation{{
				Kind:    ItemNotFound,
				Value:   strings.TrimSpace(itemName),
				Message: fmt.Sprintf("%q is not on the menu", strings.TrimSpace(itemName)),
			}},
		}
	}

	merged, order := mergeChoices(choices)
	price := item.BasePrice
	var violations []Violation

	for _, key := range item.optionOrder {
		opt := item.Options[key]
		if opt.Required && len(merged[key]) == 0 {
			violations = append(violations, Violation{
				Kind:      MissingRequiredOption,
				OptionKey: key,
				Message:   fmt.Sprintf("choose %s: %s", key, strings.Join(opt.AllowedValues, ", ")),
			})
		}
	}

	for _, key := range order {
		values := merged[key]
		opt, ok := item.Options[key]
		if !ok {
			violations = append(violations, Violation{
				Kind:      UnknownOption,
				OptionKey: key,
				Message:   fmt.Sprintf("%s has no option %q", item.Name, key),
			})
			continue
		}
		for _, val := range values {
			if !opt.Allows(val) {
				violations = append(violations, Violation{
					Kind:      InvalidChoice,
					OptionKey: key,
					Value:     val,
					Message:   fmt.Sprintf("allowed %s: %s", key, strings.Join(opt.AllowedValues, ", ")),
				})
				continue
			}
			price += opt.Delta(val)
		}
		n := len(values)
		if n == 0 {
			continue
		}
		if n < opt.Minimum {
			violations = append(violations, Violation{
				Kind:      TooFewChoices,
				OptionKey: key,
				Message:   fmt.Sprintf("choose at least %d for %s", opt.Minimum, key),
			})
		}
		if opt.Maximum > 0 && n > opt.Maximum {
			violations = append(violations, Violation{
				Kind:      TooManyChoices,
				OptionKey: key,
				Message:   fmt.Sprintf("choose at most %d for %s", opt.Maximum, key),
			})
		}
	}

	return Result{
		Valid:      len(violations) == 0,
		Price:      roundCents(price),
		Violations: violations,
	}
}

// mergeChoices folds repeated keys together, keeping first-seen key order
// and the order of values within a key.
func mergeChoices(choices []Choice) (map[string][]string, []string) {
	merged := make(map[string][]string, len(choices))
	order := make([]string, 0, len(choices))
	for _, c := range choices {
		key := strings.TrimSpace(c.Key)
		if key == "" {
			continue
		}
		if _, seen := merged[key]; !seen {
			order = append(order, key)
			merged[key] = nil
		}
		for _, val := range c.Values {
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			merged[key] = append(merged[key], val)
		}
	}
	return merged, order
}

func roundCents(p float64) float64 {
	return math.Round(p*100) / 100
}
