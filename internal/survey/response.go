package survey

import (
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// JSONKeySurveyKey and JSONKeySurveyID are the response document's
// identifying keys.
const (
	JSONKeySurveyKey = "survey_key"
	JSONKeySurveyID  = "survey_id"
)

// Submission is a decoded, not yet validated, survey response.
type Submission struct {
	// Key is the client-assigned response id; uuid.Nil when none was sent.
	Key           uuid.UUID
	SurveyID      string
	LaunchContext LaunchContext
	// Responses maps item id to submitted value. A repeatable set's value
	// is a list of iterations, each a map of item id to value.
	Responses map[string]any
	Media     MediaSet
}

// SurveyResponse is a submission that passed validation against its
// survey.
type SurveyResponse struct {
	key       uuid.UUID
	survey    *Survey
	launch    LaunchContext
	responses map[string]any
}

// NewResponse validates sub against s. The first invalid item aborts the
// validation; its id is carried by the returned fault.
func NewResponse(s *Survey, sub Submission) (*SurveyResponse, error) {
	if s == nil {
		return nil, fault.NewDefinitionError("", "the survey is missing", nil)
	}
	if sub.SurveyID != "" && sub.SurveyID != s.id {
		return nil, fault.NewResponseError(JSONKeySurveyID, fmt.Sprintf("the response is for survey '%s', not '%s'", sub.SurveyID, s.id), nil)
	}
	if sub.LaunchContext.LaunchTime.IsZero() {
		return nil, fault.NewResponseError(JSONKeyLaunchContext, "the launch context is missing", nil)
	}

	values, err := s.validate(nil, sub.Responses, sub.Media)
	if err != nil {
		return nil, err
	}

	key := sub.Key
	if key == uuid.Nil {
		key = uuid.New()
	}

	return &SurveyResponse{
		key:       key,
		survey:    s,
		launch:    sub.LaunchContext,
		responses: values,
	}, nil
}

func (r *SurveyResponse) Key() uuid.UUID               { return r.key }
func (r *SurveyResponse) Survey() *Survey              { return r.survey }
func (r *SurveyResponse) LaunchContext() LaunchContext { return r.launch }

// Responses returns a copy of the validated values by item id.
func (r *SurveyResponse) Responses() map[string]any {
	return maps.Clone(r.responses)
}

func (r *SurveyResponse) Response(itemID string) (any, bool) {
	v, ok := r.responses[itemID]
	return v, ok
}

// ToJSON returns the response document whose shape Survey.Concordia
// describes, plus the identifying keys.
func (r *SurveyResponse) ToJSON() map[string]any {
	responses := make([]any, 0, len(r.responses))
	for _, it := range r.survey.Items() {
		v, ok := r.responses[it.ID()]
		if !ok {
			continue
		}
		responses = append(responses, map[string]any{
			"prompt_id": it.ID(),
			"value":     v,
		})
	}

	return map[string]any{
		JSONKeySurveyKey:     r.key.String(),
		JSONKeySurveyID:      r.survey.id,
		JSONKeyLaunchContext: r.launch.ToJSON(),
		JSONKeyResponses:     responses,
	}
}
