package survey

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// NumberConstraints bounds a NumberPrompt. Nil bounds are open.
type NumberConstraints struct {
	Min         *decimal.Decimal
	Max         *decimal.Decimal
	WholeNumber bool
}

// NumberPrompt accepts a number within optional bounds.
type NumberPrompt struct {
	promptBase
	limits NumberConstraints
}

func NewNumberPrompt(b PromptBase, limits NumberConstraints) (*NumberPrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}
	if err := checkBounds(b.ID, limits); err != nil {
		return nil, err
	}

	p := &NumberPrompt{promptBase: base, limits: limits}
	if err := checkDefault(p, &p.promptBase); err != nil {
		return nil, err
	}
	return p, nil
}

func checkBounds(id string, limits NumberConstraints) error {
	if limits.Min != nil && limits.Max != nil && limits.Min.GreaterThan(*limits.Max) {
		return fault.NewDefinitionError(id, fmt.Sprintf("the minimum %s is greater than the maximum %s", limits.Min, limits.Max), nil)
	}
	if limits.WholeNumber {
		if limits.Min != nil && !limits.Min.IsInteger() {
			return fault.NewDefinitionError(id, "the minimum must be a whole number", nil)
		}
		if limits.Max != nil && !limits.Max.IsInteger() {
			return fault.NewDefinitionError(id, "the maximum must be a whole number", nil)
		}
	}
	return nil
}

func (p *NumberPrompt) PromptType() string             { return TypeNumber }
func (p *NumberPrompt) Constraints() NumberConstraints { return p.limits }

func (p *NumberPrompt) Validate(value any) (any, error) {
	d, err := p.checkNumber(value)
	if err != nil {
		return nil, err
	}
	return normalizeNumber(d), nil
}

func (p *NumberPrompt) checkNumber(value any) (decimal.Decimal, error) {
	d, ok := toDecimal(value)
	if !ok {
		return d, p.invalid(fmt.Sprintf("the response is not a number: %v", value))
	}
	if p.limits.WholeNumber && !d.IsInteger() {
		return d, p.invalid("the response must be a whole number")
	}
	if p.limits.Min != nil && d.LessThan(*p.limits.Min) {
		return d, p.invalid(fmt.Sprintf("the response is less than the minimum of %s", p.limits.Min))
	}
	if p.limits.Max != nil && d.GreaterThan(*p.limits.Max) {
		return d, p.invalid(fmt.Sprintf("the response is greater than the maximum of %s", p.limits.Max))
	}
	return d, nil
}

func (p *NumberPrompt) Concordia() concordia.Node {
	return concordia.Field(p.id, concordia.TypeNumber)
}

func (p *NumberPrompt) ToJSON() map[string]any {
	return p.json(TypeNumber, boundsJSON(p.limits))
}

func boundsJSON(limits NumberConstraints) map[string]any {
	props := map[string]any{}
	if limits.Min != nil {
		props["min"] = normalizeNumber(*limits.Min)
	}
	if limits.Max != nil {
		props["max"] = normalizeNumber(*limits.Max)
	}
	if limits.WholeNumber {
		props["whole_number"] = true
	}
	return props
}

// HoursBeforeNowPrompt asks how many whole hours ago something happened.
type HoursBeforeNowPrompt struct {
	NumberPrompt
}

func NewHoursBeforeNowPrompt(b PromptBase, minHours, maxHours *int64) (*HoursBeforeNowPrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}

	limits := NumberConstraints{WholeNumber: true}
	if minHours != nil {
		d := decimal.NewFromInt(*minHours)
		limits.Min = &d
	}
	if maxHours != nil {
		d := decimal.NewFromInt(*maxHours)
		limits.Max = &d
	}
	if err := checkBounds(b.ID, limits); err != nil {
		return nil, err
	}

	p := &HoursBeforeNowPrompt{NumberPrompt{promptBase: base, limits: limits}}
	if err := checkDefault(p, &p.promptBase); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *HoursBeforeNowPrompt) PromptType() string { return TypeHoursBeforeNow }

func (p *HoursBeforeNowPrompt) ToJSON() map[string]any {
	props := boundsJSON(p.limits)
	delete(props, "whole_number")
	return p.json(TypeHoursBeforeNow, props)
}
