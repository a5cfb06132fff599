package survey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// Choice is one option of a choice prompt. Value is an optional numeric
// score attached to the option.
type Choice struct {
	Key   int
	Label string
	Value *float64
}

func (c Choice) toJSON() map[string]any {
	doc := map[string]any{"key": c.Key, "label": c.Label}
	if c.Value != nil {
		doc["value"] = *c.Value
	}
	return doc
}

type choices struct {
	byKey map[int]Choice
	keys  []int
}

func newChoices(id string, list []Choice) (choices, error) {
	if len(list) == 0 {
		return choices{}, fault.NewDefinitionError(id, "a choice prompt needs at least one choice", nil)
	}

	c := choices{byKey: make(map[int]Choice, len(list))}
	labels := make(map[string]bool, len(list))
	for _, ch := range list {
		if strings.TrimSpace(ch.Label) == "" {
			return choices{}, fault.NewDefinitionError(id, fmt.Sprintf("choice %d has no label", ch.Key), nil)
		}
		if _, dup := c.byKey[ch.Key]; dup {
			return choices{}, fault.NewDefinitionError(id, fmt.Sprintf("the choice key %d is used more than once", ch.Key), nil)
		}
		if labels[ch.Label] {
			return choices{}, fault.NewDefinitionError(id, fmt.Sprintf("the choice label %q is used more than once", ch.Label), nil)
		}
		labels[ch.Label] = true
		c.byKey[ch.Key] = ch
		c.keys = append(c.keys, ch.Key)
	}
	sort.Ints(c.keys)

	return c, nil
}

func (c choices) list() []Choice {
	out := make([]Choice, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.byKey[k])
	}
	return out
}

func (c choices) toJSON() map[string]any {
	list := make([]any, 0, len(c.keys))
	for _, ch := range c.list() {
		list = append(list, ch.toJSON())
	}
	return map[string]any{"choices": list}
}

// key resolves a submitted choice key.
func (c choices) key(p *promptBase, value any) (int, error) {
	k, ok := toWhole(value)
	if !ok {
		return 0, p.invalid(fmt.Sprintf("the response is not a choice key: %v", value))
	}
	if _, ok := c.byKey[int(k)]; !ok {
		return 0, p.invalid(fmt.Sprintf("the response %d is not one of the choices", k))
	}
	return int(k), nil
}

// SingleChoicePrompt accepts exactly one choice key.
type SingleChoicePrompt struct {
	promptBase
	choices choices
}

func NewSingleChoicePrompt(b PromptBase, list []Choice) (*SingleChoicePrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}
	c, err := newChoices(b.ID, list)
	if err != nil {
		return nil, err
	}

	p := &SingleChoicePrompt{promptBase: base, choices: c}
	if err := checkDefault(p, &p.promptBase); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SingleChoicePrompt) PromptType() string { return TypeSingleChoice }
func (p *SingleChoicePrompt) Choices() []Choice  { return p.choices.list() }

func (p *SingleChoicePrompt) Validate(value any) (any, error) {
	k, err := p.choices.key(&p.promptBase, value)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (p *SingleChoicePrompt) Concordia() concordia.Node {
	return concordia.Field(p.id, concordia.TypeNumber)
}

func (p *SingleChoicePrompt) ToJSON() map[string]any {
	return p.json(TypeSingleChoice, p.choices.toJSON())
}

// MultiChoicePrompt accepts a list of distinct choice keys.
type MultiChoicePrompt struct {
	promptBase
	choices choices
}

func NewMultiChoicePrompt(b PromptBase, list []Choice) (*MultiChoicePrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}
	c, err := newChoices(b.ID, list)
	if err != nil {
		return nil, err
	}

	p := &MultiChoicePrompt{promptBase: base, choices: c}
	if err := checkDefault(p, &p.promptBase); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MultiChoicePrompt) PromptType() string { return TypeMultiChoice }
func (p *MultiChoicePrompt) Choices() []Choice  { return p.choices.list() }

func (p *MultiChoicePrompt) Validate(value any) (any, error) {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case []int:
		for _, k := range v {
			raw = append(raw, k)
		}
	case []int64:
		for _, k := range v {
			raw = append(raw, k)
		}
	case []float64:
		for _, k := range v {
			raw = append(raw, k)
		}
	default:
		return nil, p.invalid(fmt.Sprintf("the response must be a list of choice keys, got %T", value))
	}

	seen := make(map[int]bool, len(raw))
	keys := make([]int, 0, len(raw))
	for _, r := range raw {
		k, err := p.choices.key(&p.promptBase, r)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, p.invalid(fmt.Sprintf("the choice %d was selected more than once", k))
		}
		seen[k] = true
		keys = append(keys, k)
	}

	return keys, nil
}

func (p *MultiChoicePrompt) Concordia() concordia.Node {
	return concordia.Array(p.id, concordia.Node{Type: concordia.TypeNumber})
}

func (p *MultiChoicePrompt) ToJSON() map[string]any {
	return p.json(TypeMultiChoice, p.choices.toJSON())
}
