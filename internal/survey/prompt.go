package survey

import (
	"strings"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// Prompt types, as they appear in definition documents.
const (
	TypeText           = "text"
	TypeNumber         = "number"
	TypeHoursBeforeNow = "hours_before_now"
	TypeTimestamp      = "timestamp"
	TypeSingleChoice   = "single_choice"
	TypeMultiChoice    = "multi_choice"
	TypePhoto          = "photo"
	TypeVideo          = "video"
	TypeAudio          = "audio"
)

// Prompt is a single question with a typed answer.
type Prompt interface {
	Item

	PromptType() string
	Text() string
	DisplayLabel() string
	Skippable() bool
	// DefaultResponse is nil when the prompt has no default.
	DefaultResponse() any

	// Validate checks a submitted value and returns its normalized form.
	// The Skipped sentinel is handled by the caller, not here.
	Validate(value any) (any, error)
	// Concordia describes the normalized value Validate returns.
	Concordia() concordia.Node
}

// PromptBase holds the attributes common to all prompt kinds.
type PromptBase struct {
	ID              string
	Index           int
	Condition       *Condition
	Text            string
	DisplayLabel    string
	Skippable       bool
	DefaultResponse any
}

type promptBase struct {
	itemBase
	text            string
	displayLabel    string
	skippable       bool
	defaultResponse any
}

func newPromptBase(b PromptBase) (promptBase, error) {
	if strings.TrimSpace(b.ID) == "" {
		return promptBase{}, fault.NewDefinitionError("", "the prompt ID is missing", nil)
	}
	if b.Index < 0 {
		return promptBase{}, fault.NewDefinitionError(b.ID, "the index cannot be negative", nil)
	}
	if strings.TrimSpace(b.Text) == "" {
		return promptBase{}, fault.NewDefinitionError(b.ID, "the prompt text is missing", nil)
	}

	return promptBase{
		itemBase: itemBase{
			id:        b.ID,
			index:     b.Index,
			condition: b.Condition,
		},
		text:            b.Text,
		displayLabel:    b.DisplayLabel,
		skippable:       b.Skippable,
		defaultResponse: b.DefaultResponse,
	}, nil
}

func (p *promptBase) Kind() string         { return KindPrompt }
func (p *promptBase) NumItems() int        { return 1 }
func (p *promptBase) NumPrompts() int      { return 1 }
func (p *promptBase) Text() string         { return p.text }
func (p *promptBase) DisplayLabel() string { return p.displayLabel }
func (p *promptBase) Skippable() bool      { return p.skippable }
func (p *promptBase) DefaultResponse() any { return p.defaultResponse }

// checkDefault validates and normalizes a prompt's default response with
// its own Validate; an invalid default makes the definition invalid.
func checkDefault(p Prompt, base *promptBase) error {
	if base.defaultResponse == nil {
		return nil
	}
	v, err := p.Validate(base.defaultResponse)
	if err != nil {
		return fault.NewDefinitionError(p.ID(), "the default response is invalid", err)
	}
	base.defaultResponse = v
	return nil
}

func (p *promptBase) json(promptType string, properties map[string]any) map[string]any {
	doc := p.itemBase.json(KindPrompt)
	doc["prompt_type"] = promptType
	doc["text"] = p.text
	doc["skippable"] = p.skippable
	if p.displayLabel != "" {
		doc["display_label"] = p.displayLabel
	}
	if p.defaultResponse != nil {
		doc["default"] = p.defaultResponse
	}
	if len(properties) > 0 {
		doc["properties"] = properties
	}
	return doc
}

func (p *promptBase) invalid(msg string) error {
	return fault.NewResponseError(p.id, msg, nil)
}

// validatePrompt applies the rules shared by every prompt kind before
// delegating to Validate.
func validatePrompt(p Prompt, value any, present bool, media MediaSet) (any, error) {
	if !present || value == nil {
		if p.Skippable() {
			return Skipped, nil
		}
		return nil, fault.NewResponseError(p.ID(), "a response is required", nil)
	}

	if s, ok := value.(string); ok {
		switch s {
		case Skipped:
			if !p.Skippable() {
				return nil, fault.NewResponseError(p.ID(), "the prompt is not skippable", nil)
			}
			return Skipped, nil
		case NotDisplayed:
			return nil, fault.NewResponseError(p.ID(), "the prompt was displayed but the response says it was not", nil)
		}
	}

	v, err := p.Validate(value)
	if err != nil {
		return nil, err
	}

	if mp, ok := p.(MediaPrompt); ok {
		if err := validateAttachment(mp, v, media); err != nil {
			return nil, err
		}
	}

	return v, nil
}
