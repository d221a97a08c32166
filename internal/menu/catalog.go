package menu

import (
	"sort"
	"strings"
)

// Option is one option group of a menu item (size, toppings, sauce...).
type Option struct {
	Key           string
	Required      bool
	AllowedValues []string
	PriceDeltas   map[string]float64
	// Minimum and Maximum bound how many values may be chosen.
	// Maximum == 0 means unlimited.
	Minimum int
	Maximum int
}

// Allows reports whether value is one of the allowed values of the group.
func (o *Option) Allows(value string) bool {
	for _, v := range o.AllowedValues {
		if v == value {
			return true
		}
	}
	return false
}

// Delta returns the price adjustment for value, 0 when none is defined.
func (o *Option) Delta(value string) float64 {
	return o.PriceDeltas[value]
}

// Item is an immutable menu entry.
type Item struct {
	Name        string
	Type        string
	Description string
	BasePrice   float64
	Options     map[string]*Option

	optionOrder []string
}

// OptionKeys returns the item's option keys in a stable order.
func (i *Item) OptionKeys() []string {
	out := make([]string, len(i.optionOrder))
	copy(out, i.optionOrder)
	return out
}

// Catalog is the process-wide, read-only menu. It is built once by Load/Parse
// and never mutated afterwards, so it can be shared across conversations.
type Catalog struct {
	items map[string]*Item
	names []string
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newCatalog(items []*Item) *Catalog {
	c := &Catalog{items: make(map[string]*Item, len(items))}
	for _, it := range items {
		keys := make([]string, 0, len(it.Options))
		for k := range it.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		it.optionOrder = keys
		c.items[normalizeName(it.Name)] = it
		c.names = append(c.names, it.Name)
	}
	sort.Strings(c.names)
	return c
}

// Lookup finds an item by case-insensitive exact name.
func (c *Catalog) Lookup(name string) (*Item, bool) {
	if c == nil {
		return nil, false
	}
	it, ok := c.items[normalizeName(name)]
	return it, ok
}

// Names lists the display names of every item, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len is the number of items on the menu.
func (c *Catalog) Len() int {
	return len(c.items)
}
