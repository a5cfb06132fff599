package survey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// Definition is a survey definition document, as loaded from a campaign
// file or from storage. Its keys match Survey.ToJSON, so a document emitted
// with AllFields parses back into an equal Survey.
type Definition struct {
	ID          string           `json:"id" yaml:"id"`
	Title       string           `json:"title" yaml:"title"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	IntroText   string           `json:"intro_text,omitempty" yaml:"intro_text,omitempty"`
	SubmitText  string           `json:"submit_text" yaml:"submit_text"`
	Anytime     bool             `json:"anytime" yaml:"anytime"`
	Items       []ItemDefinition `json:"prompts" yaml:"prompts"`
}

// ItemDefinition describes one survey item of any kind. Index defaults to
// the item's position in its list.
type ItemDefinition struct {
	ID        string `json:"id" yaml:"id"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Index     *int   `json:"index,omitempty" yaml:"index,omitempty"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Prompts.
	PromptType   string         `json:"prompt_type,omitempty" yaml:"prompt_type,omitempty"`
	Text         string         `json:"text,omitempty" yaml:"text,omitempty"`
	DisplayLabel string         `json:"display_label,omitempty" yaml:"display_label,omitempty"`
	Skippable    bool           `json:"skippable,omitempty" yaml:"skippable,omitempty"`
	Default      any            `json:"default,omitempty" yaml:"default,omitempty"`
	Properties   map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Messages.
	MessageText string `json:"message_text,omitempty" yaml:"message_text,omitempty"`

	// Repeatable sets.
	TerminationQuestion    string           `json:"termination_question,omitempty" yaml:"termination_question,omitempty"`
	TerminationTrueLabel   string           `json:"termination_true_label,omitempty" yaml:"termination_true_label,omitempty"`
	TerminationFalseLabel  string           `json:"termination_false_label,omitempty" yaml:"termination_false_label,omitempty"`
	TerminationSkipEnabled bool             `json:"termination_skip_enabled,omitempty" yaml:"termination_skip_enabled,omitempty"`
	TerminationSkipLabel   string           `json:"termination_skip_label,omitempty" yaml:"termination_skip_label,omitempty"`
	Items                  []ItemDefinition `json:"prompts,omitempty" yaml:"prompts,omitempty"`
}

// DecodeDefinition reads a JSON or YAML definition document. JSON is
// recognized by a leading '{'.
func DecodeDefinition(data []byte) (Definition, error) {
	var def Definition

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&def); err != nil {
			return Definition{}, fault.NewDefinitionError("", "the survey definition is not valid JSON", err)
		}
		return def, nil
	}

	if err := yaml.Unmarshal(trimmed, &def); err != nil {
		return Definition{}, fault.NewDefinitionError("", "the survey definition is not valid YAML", err)
	}
	return def, nil
}

// Parse decodes and builds a survey definition.
func Parse(data []byte) (*Survey, error) {
	def, err := DecodeDefinition(data)
	if err != nil {
		return nil, err
	}
	return def.Build()
}

// Build creates the Survey the document describes.
func (d Definition) Build() (*Survey, error) {
	items, err := buildItems(d.ID, d.Items)
	if err != nil {
		return nil, err
	}
	return New(d.ID, d.Title, d.Description, d.IntroText, d.SubmitText, d.Anytime, items)
}

// DefinitionOf converts a survey back into its document form.
func DefinitionOf(s *Survey) (Definition, error) {
	data, err := json.Marshal(s.ToJSON(AllFields))
	if err != nil {
		return Definition{}, fmt.Errorf("marshal survey %s: %w", s.id, err)
	}
	return DecodeDefinition(data)
}

func buildItems(owner string, defs []ItemDefinition) (map[int]Item, error) {
	if len(defs) == 0 {
		return nil, fault.NewDefinitionError(owner, "the list of survey items cannot be empty", nil)
	}

	items := make(map[int]Item, len(defs))
	for pos, def := range defs {
		index := pos
		if def.Index != nil {
			index = *def.Index
		}
		if _, dup := items[index]; dup {
			return nil, fault.NewDefinitionError(def.ID, fmt.Sprintf("the index %d is used more than once", index), nil)
		}

		it, err := def.build(index)
		if err != nil {
			return nil, err
		}
		items[index] = it
	}
	return items, nil
}

func (d ItemDefinition) kind() string {
	switch {
	case d.Type != "":
		return d.Type
	case d.PromptType != "":
		return KindPrompt
	case len(d.Items) > 0:
		return KindRepeatableSet
	case d.MessageText != "":
		return KindMessage
	}
	return ""
}

func (d ItemDefinition) build(index int) (Item, error) {
	cond, err := NewCondition(d.ID, d.Condition)
	if err != nil {
		return nil, err
	}

	switch d.kind() {
	case KindPrompt:
		return d.buildPrompt(index, cond)
	case KindMessage:
		return NewMessage(d.ID, index, cond, d.MessageText)
	case KindRepeatableSet:
		items, err := buildItems(d.ID, d.Items)
		if err != nil {
			return nil, err
		}
		return NewRepeatableSet(d.ID, index, cond, d.Skippable, Termination{
			Question:    d.TerminationQuestion,
			TrueLabel:   d.TerminationTrueLabel,
			FalseLabel:  d.TerminationFalseLabel,
			SkipEnabled: d.TerminationSkipEnabled,
			SkipLabel:   d.TerminationSkipLabel,
		}, items)
	}
	return nil, fault.NewDefinitionError(d.ID, fmt.Sprintf("unknown survey item type '%s'", d.Type), nil)
}

func (d ItemDefinition) buildPrompt(index int, cond *Condition) (Item, error) {
	base := PromptBase{
		ID:              d.ID,
		Index:           index,
		Condition:       cond,
		Text:            d.Text,
		DisplayLabel:    d.DisplayLabel,
		Skippable:       d.Skippable,
		DefaultResponse: d.Default,
	}
	props := properties{id: d.ID, values: d.Properties}

	switch strings.ToLower(d.PromptType) {
	case TypeText:
		minLen, err := props.int("min")
		if err != nil {
			return nil, err
		}
		maxLen, err := props.int("max")
		if err != nil {
			return nil, err
		}
		return NewTextPrompt(base, int(deref(minLen)), int(deref(maxLen)))

	case TypeNumber:
		var limits NumberConstraints
		var err error
		if limits.Min, err = props.decimal("min"); err != nil {
			return nil, err
		}
		if limits.Max, err = props.decimal("max"); err != nil {
			return nil, err
		}
		if limits.WholeNumber, err = props.bool("whole_number"); err != nil {
			return nil, err
		}
		return NewNumberPrompt(base, limits)

	case TypeHoursBeforeNow:
		minHours, err := props.int("min")
		if err != nil {
			return nil, err
		}
		maxHours, err := props.int("max")
		if err != nil {
			return nil, err
		}
		return NewHoursBeforeNowPrompt(base, minHours, maxHours)

	case TypeTimestamp:
		return NewTimestampPrompt(base)

	case TypeSingleChoice, TypeMultiChoice:
		list, err := props.choices()
		if err != nil {
			return nil, err
		}
		if strings.ToLower(d.PromptType) == TypeSingleChoice {
			return NewSingleChoicePrompt(base, list)
		}
		return NewMultiChoicePrompt(base, list)

	case TypePhoto:
		maxDim, err := props.int("max_dimension")
		if err != nil {
			return nil, err
		}
		return NewPhotoPrompt(base, intPtr(maxDim))

	case TypeVideo:
		maxSeconds, err := props.int("max_seconds")
		if err != nil {
			return nil, err
		}
		return NewVideoPrompt(base, intPtr(maxSeconds))

	case TypeAudio:
		maxDuration, err := props.int("max_duration")
		if err != nil {
			return nil, err
		}
		return NewAudioPrompt(base, maxDuration)
	}

	return nil, fault.NewDefinitionError(d.ID, fmt.Sprintf("unknown prompt type '%s'", d.PromptType), nil)
}

// properties reads kind-specific prompt settings.
type properties struct {
	id     string
	values map[string]any
}

func (p properties) int(key string) (*int64, error) {
	raw, ok := p.values[key]
	if !ok || raw == nil {
		return nil, nil
	}
	n, ok := toWhole(raw)
	if !ok {
		return nil, fault.NewDefinitionError(p.id, fmt.Sprintf("the property '%s' must be a whole number: %v", key, raw), nil)
	}
	return &n, nil
}

func (p properties) decimal(key string) (*decimal.Decimal, error) {
	raw, ok := p.values[key]
	if !ok || raw == nil {
		return nil, nil
	}
	d, ok := toDecimal(raw)
	if !ok {
		return nil, fault.NewDefinitionError(p.id, fmt.Sprintf("the property '%s' must be a number: %v", key, raw), nil)
	}
	return &d, nil
}

func (p properties) bool(key string) (bool, error) {
	raw, ok := p.values[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fault.NewDefinitionError(p.id, fmt.Sprintf("the property '%s' must be true or false: %v", key, raw), nil)
	}
	return b, nil
}

func (p properties) choices() ([]Choice, error) {
	raw, ok := p.values["choices"].([]any)
	if !ok {
		return nil, fault.NewDefinitionError(p.id, "the property 'choices' must be a list", nil)
	}

	list := make([]Choice, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fault.NewDefinitionError(p.id, fmt.Sprintf("choice %d is not an object", i), nil)
		}
		key, ok := toWhole(m["key"])
		if !ok {
			return nil, fault.NewDefinitionError(p.id, fmt.Sprintf("choice %d has no whole-number key", i), nil)
		}
		label, _ := m["label"].(string)
		ch := Choice{Key: int(key), Label: label}
		if v, present := m["value"]; present && v != nil {
			d, ok := toDecimal(v)
			if !ok {
				return nil, fault.NewDefinitionError(p.id, fmt.Sprintf("choice %d has a non-numeric value", i), nil)
			}
			f, _ := d.Float64()
			ch.Value = &f
		}
		list = append(list, ch)
	}
	return list, nil
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func intPtr(n *int64) *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}
