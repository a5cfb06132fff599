package survey

import (
	"fmt"
	"maps"
	"reflect"
	"sort"
	"strings"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// container is the ordered item collection shared by Survey and
// RepeatableSet.
type container struct {
	items   map[int]Item
	order   []int
	prompts map[string]Prompt
	sets    []*RepeatableSet
}

func newContainer(owner string, items map[int]Item) (container, error) {
	if len(items) == 0 {
		return container{}, fault.NewDefinitionError(owner, "the list of survey items cannot be empty", nil)
	}

	c := container{
		items:   maps.Clone(items),
		order:   make([]int, 0, len(items)),
		prompts: make(map[string]Prompt),
	}

	ids := make(map[string]bool, len(items))
	for index, it := range items {
		if it == nil {
			return container{}, fault.NewDefinitionError(owner, fmt.Sprintf("the survey item at index %d is missing", index), nil)
		}
		if it.Index() != index {
			return container{}, fault.NewDefinitionError(it.ID(), fmt.Sprintf("the item's index %d does not match its position %d", it.Index(), index), nil)
		}
		if ids[it.ID()] {
			return container{}, fault.NewDefinitionError(it.ID(), "the survey item ID is used more than once", nil)
		}
		ids[it.ID()] = true
		c.order = append(c.order, index)
	}
	sort.Ints(c.order)

	for _, index := range c.order {
		switch it := c.items[index].(type) {
		case Prompt:
			c.prompts[it.ID()] = it
		case *RepeatableSet:
			c.sets = append(c.sets, it)
		}
	}

	return c, nil
}

func (c *container) Item(id string) (Item, bool) {
	for _, index := range c.order {
		it := c.items[index]
		if it.ID() == id {
			return it, true
		}
		if rs, ok := it.(*RepeatableSet); ok {
			if found, ok := rs.Item(id); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func (c *container) ItemAt(index int) (Item, bool) {
	it, ok := c.items[index]
	return it, ok
}

func (c *container) Prompt(id string) (Prompt, bool) {
	if p, ok := c.prompts[id]; ok {
		return p, true
	}
	for _, rs := range c.sets {
		if p, ok := rs.Prompt(id); ok {
			return p, true
		}
	}
	return nil, false
}

func (c *container) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, index := range c.order {
		out = append(out, c.items[index])
	}
	return out
}

// SurveyItems returns a copy of the index to item mapping.
func (c *container) SurveyItems() map[int]Item {
	return maps.Clone(c.items)
}

func (c *container) NumItems() int {
	total := 0
	for _, it := range c.items {
		total += it.NumItems()
	}
	return total
}

func (c *container) NumPrompts() int {
	total := 0
	for _, it := range c.items {
		total += it.NumPrompts()
	}
	return total
}

func (c *container) itemsJSON(filter map[string]bool) []any {
	out := make([]any, 0, len(c.order))
	for _, index := range c.order {
		it := c.items[index]
		if filter != nil && !filter[it.ID()] {
			continue
		}
		out = append(out, it.ToJSON())
	}
	return out
}

// checkReferences verifies every condition reads only items answered
// before it. prior holds the ids answered so far in the enclosing scope.
func (c *container) checkReferences(prior map[string]bool) error {
	prior = maps.Clone(prior)
	if prior == nil {
		prior = map[string]bool{}
	}

	for _, index := range c.order {
		it := c.items[index]
		if cond := it.Condition(); cond != nil {
			for _, ref := range cond.References() {
				if !prior[ref] {
					return fault.NewDefinitionError(it.ID(), fmt.Sprintf("the condition references '%s', which is not answered before this item", ref), nil)
				}
			}
		}
		switch it := it.(type) {
		case *RepeatableSet:
			if err := it.checkReferences(prior); err != nil {
				return err
			}
			prior[it.ID()] = true
		case Prompt:
			prior[it.ID()] = true
		}
	}
	return nil
}

func (c *container) equal(other *container) bool {
	if len(c.items) != len(other.items) {
		return false
	}
	for index, it := range c.items {
		o, ok := other.items[index]
		if !ok || reflect.TypeOf(it) != reflect.TypeOf(o) {
			return false
		}
		if !reflect.DeepEqual(it.ToJSON(), o.ToJSON()) {
			return false
		}
	}
	return true
}

// validate checks one set of answers against the items in ascending index
// order. scope holds the answers visible to conditions from enclosing
// containers; it is not modified.
func (c *container) validate(scope map[string]any, values map[string]any, media MediaSet) (map[string]any, error) {
	if err := c.checkUnknown(values); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(c.order))
	visible := maps.Clone(scope)
	if visible == nil {
		visible = make(map[string]any, len(c.order))
	}

	for _, index := range c.order {
		it := c.items[index]
		raw, present := values[it.ID()]

		shown, err := it.Condition().Evaluate(visible)
		if err != nil {
			return nil, fault.NewDefinitionError(it.ID(), "the condition could not be evaluated", err)
		}
		if !shown {
			if _, isMessage := it.(*Message); !isMessage {
				out[it.ID()] = NotDisplayed
				visible[it.ID()] = NotDisplayed
			}
			continue
		}

		var v any
		switch it := it.(type) {
		case *Message:
			continue
		case Prompt:
			v, err = validatePrompt(it, raw, present, media)
		case *RepeatableSet:
			v, err = it.validateIterations(visible, raw, present, media)
		default:
			err = fault.NewDefinitionError(it.ID(), fmt.Sprintf("unsupported survey item %T", it), nil)
		}
		if err != nil {
			return nil, err
		}

		out[it.ID()] = v
		visible[it.ID()] = v
	}

	return out, nil
}

// checkUnknown rejects answers for ids that are not answerable direct
// children of the container.
func (c *container) checkUnknown(values map[string]any) error {
	var unknown []string
	for id := range values {
		found := false
		for _, it := range c.items {
			if it.ID() == id && it.Kind() != KindMessage {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)
	return fault.NewResponseError(unknown[0], "the response does not match any survey item: "+strings.Join(unknown, ", "), nil)
}
