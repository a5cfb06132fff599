package survey

import (
	"fmt"
	"strings"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// Termination holds the question asked after each iteration of a
// repeatable set, e.g. "Did you eat anything else?".
type Termination struct {
	Question    string
	TrueLabel   string
	FalseLabel  string
	SkipEnabled bool
	SkipLabel   string
}

// RepeatableSet is a named group of items answered zero or more times. Each
// answer is an iteration: a mapping from contained item id to value.
type RepeatableSet struct {
	itemBase
	container
	skippable   bool
	termination Termination
}

func NewRepeatableSet(id string, index int, condition *Condition, skippable bool, termination Termination, items map[int]Item) (*RepeatableSet, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fault.NewDefinitionError("", "the repeatable set ID is missing", nil)
	}
	if index < 0 {
		return nil, fault.NewDefinitionError(id, "the index cannot be negative", nil)
	}
	if termination.SkipEnabled && strings.TrimSpace(termination.SkipLabel) == "" {
		return nil, fault.NewDefinitionError(id, "termination skipping is enabled but there is no skip label", nil)
	}

	c, err := newContainer(id, items)
	if err != nil {
		return nil, err
	}

	return &RepeatableSet{
		itemBase:    itemBase{id: id, index: index, condition: condition},
		container:   c,
		skippable:   skippable,
		termination: termination,
	}, nil
}

func (rs *RepeatableSet) Kind() string             { return KindRepeatableSet }
func (rs *RepeatableSet) Skippable() bool          { return rs.skippable }
func (rs *RepeatableSet) Termination() Termination { return rs.termination }

func (rs *RepeatableSet) ToJSON() map[string]any {
	doc := rs.json(KindRepeatableSet)
	doc["skippable"] = rs.skippable
	if t := rs.termination; t.Question != "" {
		doc["termination_question"] = t.Question
		doc["termination_true_label"] = t.TrueLabel
		doc["termination_false_label"] = t.FalseLabel
		doc["termination_skip_enabled"] = t.SkipEnabled
		if t.SkipLabel != "" {
			doc["termination_skip_label"] = t.SkipLabel
		}
	}
	doc["prompts"] = rs.itemsJSON(nil)
	return doc
}

// validateIterations checks the list of iterations submitted for the set.
// Conditions inside an iteration see scope plus that iteration's earlier
// answers.
func (rs *RepeatableSet) validateIterations(scope map[string]any, value any, present bool, media MediaSet) (any, error) {
	if !present || value == nil {
		if rs.skippable {
			return Skipped, nil
		}
		return nil, fault.NewResponseError(rs.id, "a response is required", nil)
	}

	var raw []any
	switch v := value.(type) {
	case string:
		switch {
		case v == Skipped && rs.skippable:
			return Skipped, nil
		case v == Skipped:
			return nil, fault.NewResponseError(rs.id, "the repeatable set is not skippable", nil)
		case v == NotDisplayed:
			return nil, fault.NewResponseError(rs.id, "the repeatable set was displayed but the response says it was not", nil)
		}
		return nil, fault.NewResponseError(rs.id, "the response must be a list of iterations", nil)
	case []any:
		raw = v
	case []map[string]any:
		for _, iter := range v {
			raw = append(raw, iter)
		}
	default:
		return nil, fault.NewResponseError(rs.id, fmt.Sprintf("the response must be a list of iterations, got %T", value), nil)
	}

	out := make([]map[string]any, 0, len(raw))
	for i, r := range raw {
		iter, ok := r.(map[string]any)
		if !ok {
			return nil, fault.NewResponseError(rs.id, fmt.Sprintf("iteration %d is not an object", i), nil)
		}
		v, err := rs.container.validate(scope, iter, media)
		if err != nil {
			return nil, fmt.Errorf("%s iteration %d: %w", rs.id, i, err)
		}
		out = append(out, v)
	}

	return out, nil
}
