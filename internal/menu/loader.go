package menu

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OptionDefinition is the on-disk shape of an option group.
type OptionDefinition struct {
	Required      bool               `json:"required" yaml:"required"`
	AllowedValues []string           `json:"allowedValues" yaml:"allowedValues"`
	PriceDeltas   map[string]float64 `json:"priceDeltas,omitempty" yaml:"priceDeltas,omitempty"`
	Minimum       *int               `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum       *int               `json:"maximum,omitempty" yaml:"maximum,omitempty"`
}

// ItemDefinition is the on-disk shape of a menu item.
type ItemDefinition struct {
	BasePrice   float64                     `json:"basePrice" yaml:"basePrice"`
	Type        string                      `json:"type,omitempty" yaml:"type,omitempty"`
	Description string                      `json:"description,omitempty" yaml:"description,omitempty"`
	Options     map[string]OptionDefinition `json:"options,omitempty" yaml:"options,omitempty"`
}

// Definition maps item name to its definition.
type Definition map[string]ItemDefinition

// Load reads a menu file. Files ending in .yaml/.yml are parsed as YAML,
// everything else as JSON.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(raw)
	default:
		return ParseJSON(raw)
	}
}

// ParseJSON builds a catalog from a JSON menu definition.
func ParseJSON(raw []byte) (*Catalog, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode menu json: %w", err)
	}
	return Build(def)
}

// ParseYAML builds a catalog from a YAML menu definition.
func ParseYAML(raw []byte) (*Catalog, error) {
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode menu yaml: %w", err)
	}
	return Build(def)
}

// Build validates a definition and turns it into an immutable catalog.
func Build(def Definition) (*Catalog, error) {
	if len(def) == 0 {
		return nil, fmt.Errorf("menu has no items")
	}

	seen := make(map[string]string, len(def))
	items := make([]*Item, 0, len(def))
	for name, d := range def {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("menu item with empty name")
		}
		norm := normalizeName(name)
		if prev, ok := seen[norm]; ok {
			return nil, fmt.Errorf("duplicate menu item %q (conflicts with %q)", name, prev)
		}
		seen[norm] = name

		if d.BasePrice < 0 {
			return nil, fmt.Errorf("item %q: negative base price", name)
		}

		it := &Item{
			Name:        name,
			Type:        d.Type,
			Description: d.Description,
			BasePrice:   d.BasePrice,
			Options:     make(map[string]*Option, len(d.Options)),
		}
		for key, od := range d.Options {
			opt, err := buildOption(key, od)
			if err != nil {
				return nil, fmt.Errorf("item %q: %w", name, err)
			}
			it.Options[opt.Key] = opt
		}
		items = append(items, it)
	}
	return newCatalog(items), nil
}

func buildOption(key string, od OptionDefinition) (*Option, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("option with empty key")
	}
	if len(od.AllowedValues) == 0 {
		return nil, fmt.Errorf("option %q: allowedValues is empty", key)
	}

	allowed := make(map[string]struct{}, len(od.AllowedValues))
	values := make([]string, 0, len(od.AllowedValues))
	for _, v := range od.AllowedValues {
		if _, dup := allowed[v]; dup {
			return nil, fmt.Errorf("option %q: duplicate value %q", key, v)
		}
		allowed[v] = struct{}{}
		values = append(values, v)
	}

	deltas := make(map[string]float64, len(od.PriceDeltas))
	for v, p := range od.PriceDeltas {
		if _, ok := allowed[v]; !ok {
			return nil, fmt.Errorf("option %q: price delta for unknown value %q", key, v)
		}
		deltas[v] = p
	}

	min := 0
	if od.Required {
		min = 1
	}
	if od.Minimum != nil {
		min = *od.Minimum
	}
	max := 0
	if od.Maximum != nil {
		max = *od.Maximum
	}
	if min < 0 || max < 0 {
		return nil, fmt.Errorf("option %q: negative cardinality", key)
	}
	if max > 0 && min > max {
		return nil, fmt.Errorf("option %q: minimum %d exceeds maximum %d", key, min, max)
	}

	return &Option{
		Key:           key,
		Required:      od.Required,
		AllowedValues: values,
		PriceDeltas:   deltas,
		Minimum:       min,
		Maximum:       max,
	}, nil
}

// Definition converts the catalog back to its on-disk shape. The planner
// prompt embeds this so the model sees exactly what the validator enforces.
func (c *Catalog) Definition() Definition {
	def := make(Definition, len(c.items))
	for _, it := range c.items {
		d := ItemDefinition{
			BasePrice:   it.BasePrice,
			Type:        it.Type,
			Description: it.Description,
		}
		if len(it.Options) > 0 {
			d.Options = make(map[string]OptionDefinition, len(it.Options))
			for _, key := range it.optionOrder {
				o := it.Options[key]
				min, max := o.Minimum, o.Maximum
				od := OptionDefinition{
					Required:      o.Required,
					AllowedValues: append([]string(nil), o.AllowedValues...),
					Minimum:       &min,
				}
				if len(o.PriceDeltas) > 0 {
					od.PriceDeltas = make(map[string]float64, len(o.PriceDeltas))
					for v, p := range o.PriceDeltas {
						od.PriceDeltas[v] = p
					}
				}
				if max > 0 {
					od.Maximum = &max
				}
				d.Options[key] = od
			}
		}
		def[it.Name] = d
	}
	return def
}
