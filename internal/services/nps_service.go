package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/paulexconde/surveysense/internal/survey"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// NOTE: the formula for determining the NPS
// NPS = %Promoters - %Detractors

const ratingPageSize = 500

var (
	ratingMin     = decimal.NewFromInt(0)
	ratingMax     = decimal.NewFromInt(10)
	promoterFloor = decimal.NewFromInt(9)
	passiveFloor  = decimal.NewFromInt(7)
)

type NPS struct {
	SurveyID string `json:"survey_id"`
	PromptID string `json:"prompt_id"`
	// Stored answers to the prompt, skipped and hidden ones excluded.
	TotalResponses int `json:"total_responses"`
	// Ratings 9 or 10
	Promoters int `json:"promoters"`
	// Ratings 7 or 8
	Passives int `json:"passives"`
	// 6 or lower
	Detractors int `json:"detractors"`
}

// Add classifies one rating on the 0 to 10 scale.
func (n *NPS) Add(rating decimal.Decimal) error {
	if rating.LessThan(ratingMin) || rating.GreaterThan(ratingMax) {
		return fmt.Errorf("the rating %s is outside the 0 to 10 scale", rating)
	}

	n.TotalResponses++
	switch {
	case rating.GreaterThanOrEqual(promoterFloor):
		n.Promoters++
	case rating.GreaterThanOrEqual(passiveFloor):
		n.Passives++
	default:
		n.Detractors++
	}
	return nil
}

func (n *NPS) CalculateNPS() (int, error) {
	if n.TotalResponses == 0 {
		return 0, nil
	}

	totalEntities := (n.Promoters + n.Passives + n.Detractors)
	if n.TotalResponses < totalEntities {
		return 0, fmt.Errorf("cannot compute nps with total responses less than the total of entities: %d total < total entities: %d", n.TotalResponses, totalEntities)
	}

	promoterCalc := (float64(n.Promoters) / float64(n.TotalResponses)) * 100
	detractorCalc := (float64(n.Detractors) / float64(n.TotalResponses)) * 100

	return int(promoterCalc - detractorCalc), nil
}

func (s *surveyResponseServiceImpl) RatingSummary(ctx context.Context, surveyID, promptID string) (*NPS, error) {
	sv, err := s.surveyservice.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	p, ok := sv.Prompt(promptID)
	if !ok {
		return nil, fault.NewClientError(fmt.Sprintf("the survey '%s' has no prompt '%s'", surveyID, promptID), fault.ErrNotFound)
	}

	var rate func(v any) (decimal.Decimal, error)
	switch rp := p.(type) {
	case *survey.NumberPrompt:
		rate = ratingNumber
	case *survey.SingleChoicePrompt:
		rate = choiceRating(rp.Choices())
	default:
		return nil, fault.NewClientError(fmt.Sprintf("the prompt '%s' is a %s prompt, not a rating", promptID, p.PromptType()), nil)
	}

	summary := &NPS{SurveyID: surveyID, PromptID: promptID}

	for page := 1; ; page++ {
		res, err := s.ListResponses(ctx, surveyID, page, ratingPageSize)
		if err != nil {
			return nil, err
		}

		for _, row := range res.Items {
			values, err := decodeResponses(row.Responses)
			if err != nil {
				return nil, fault.NewInternalError(fmt.Sprintf("the stored response '%s' is corrupt", row.ResponseKey), err)
			}
			for _, v := range collectValues(values, promptID) {
				if sentinel, ok := v.(string); ok && (sentinel == survey.Skipped || sentinel == survey.NotDisplayed) {
					continue
				}
				rating, err := rate(v)
				if err == nil {
					err = summary.Add(rating)
				}
				if err != nil {
					return nil, fault.NewResponseError(promptID, fmt.Sprintf("response '%s': %v", row.ResponseKey, err), nil)
				}
			}
		}

		if res.NextPage == nil {
			break
		}
	}

	return summary, nil
}

func decodeResponses(doc string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

// collectValues finds every value recorded for promptID, including those
// inside repeatable set iterations.
func collectValues(values map[string]any, promptID string) []any {
	var out []any
	for id, v := range values {
		if id == promptID {
			out = append(out, v)
			continue
		}
		iterations, ok := v.([]any)
		if !ok {
			continue
		}
		for _, iter := range iterations {
			if m, ok := iter.(map[string]any); ok {
				out = append(out, collectValues(m, promptID)...)
			}
		}
	}
	return out
}

func ratingNumber(v any) (decimal.Decimal, error) {
	n, ok := v.(json.Number)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("the value %v is not a number", v)
	}
	return decimal.NewFromString(n.String())
}

// choiceRating rates a choice by its value, or by its key when it has none.
func choiceRating(choices []survey.Choice) func(v any) (decimal.Decimal, error) {
	byKey := make(map[string]survey.Choice, len(choices))
	for _, c := range choices {
		byKey[fmt.Sprint(c.Key)] = c
	}

	return func(v any) (decimal.Decimal, error) {
		n, ok := v.(json.Number)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("the value %v is not a choice key", v)
		}
		c, ok := byKey[n.String()]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("the value %s is not one of the choices", n)
		}
		if c.Value != nil {
			return decimal.NewFromFloat(*c.Value), nil
		}
		return decimal.NewFromInt(int64(c.Key)), nil
	}
}
