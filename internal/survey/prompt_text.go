package survey

import (
	"fmt"
	"unicode/utf8"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// TextPrompt accepts free text whose length, in characters, lies within
// [Min, Max]. A zero Max means no upper bound.
type TextPrompt struct {
	promptBase
	min int
	max int
}

func NewTextPrompt(b PromptBase, minLen, maxLen int) (*TextPrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}
	if minLen < 0 || maxLen < 0 {
		return nil, fault.NewDefinitionError(b.ID, "the length bounds cannot be negative", nil)
	}
	if maxLen > 0 && minLen > maxLen {
		return nil, fault.NewDefinitionError(b.ID, fmt.Sprintf("the minimum length %d is greater than the maximum %d", minLen, maxLen), nil)
	}

	p := &TextPrompt{promptBase: base, min: minLen, max: maxLen}
	if err := checkDefault(p, &p.promptBase); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *TextPrompt) PromptType() string { return TypeText }
func (p *TextPrompt) Min() int           { return p.min }
func (p *TextPrompt) Max() int           { return p.max }

func (p *TextPrompt) Validate(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, p.invalid(fmt.Sprintf("the response must be text, got %T", value))
	}

	n := utf8.RuneCountInString(s)
	if n < p.min {
		return nil, p.invalid(fmt.Sprintf("the response is shorter than the minimum length of %d", p.min))
	}
	if p.max > 0 && n > p.max {
		return nil, p.invalid(fmt.Sprintf("the response is longer than the maximum length of %d", p.max))
	}

	return s, nil
}

func (p *TextPrompt) Concordia() concordia.Node {
	return concordia.Field(p.id, concordia.TypeString)
}

func (p *TextPrompt) ToJSON() map[string]any {
	props := map[string]any{"min": p.min}
	if p.max > 0 {
		props["max"] = p.max
	}
	return p.json(TypeText, props)
}
