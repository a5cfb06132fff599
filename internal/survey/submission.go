package survey

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// ParseSubmission decodes an uploaded survey response document:
//
//	{
//	  "survey_key": "<uuid>",
//	  "survey_id": "s1",
//	  "survey_launch_context": {"launch_time": 1700000000000, "launch_timezone": "UTC", "active_triggers": []},
//	  "responses": [
//	    {"prompt_id": "p1", "value": "hello"},
//	    {"repeatable_set_id": "rs1", "responses": [[{"prompt_id": "p2", "value": 1}]]}
//	  ]
//	}
//
// "responses" may also be an object mapping item id to value. media holds
// the attachments uploaded alongside the document.
func ParseSubmission(data []byte, media MediaSet) (Submission, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Submission{}, fault.NewClientError("the survey response is not valid JSON", err)
	}
	return SubmissionFromJSON(doc, media)
}

// SubmissionFromJSON is ParseSubmission for an already decoded document.
func SubmissionFromJSON(doc map[string]any, media MediaSet) (Submission, error) {
	sub := Submission{Media: media}

	if raw, ok := doc[JSONKeySurveyKey].(string); ok && raw != "" {
		key, err := uuid.Parse(raw)
		if err != nil {
			return Submission{}, fault.NewResponseError(JSONKeySurveyKey, "the survey key is not a UUID", err)
		}
		sub.Key = key
	}

	sub.SurveyID, _ = doc[JSONKeySurveyID].(string)

	lcDoc, _ := doc[JSONKeyLaunchContext].(map[string]any)
	lc, err := ParseLaunchContext(lcDoc)
	if err != nil {
		return Submission{}, err
	}
	sub.LaunchContext = lc

	responses, err := responseValues(doc[JSONKeyResponses])
	if err != nil {
		return Submission{}, err
	}
	sub.Responses = responses

	return sub, nil
}

// responseValues flattens either accepted "responses" shape into a map of
// item id to value.
func responseValues(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case []any:
		out := make(map[string]any, len(v))
		for i, entry := range v {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fault.NewResponseError(JSONKeyResponses, fmt.Sprintf("response %d is not an object", i), nil)
			}

			if id, ok := m["prompt_id"].(string); ok {
				if _, dup := out[id]; dup {
					return nil, fault.NewResponseError(id, "the item was answered more than once", nil)
				}
				out[id] = m["value"]
				continue
			}

			id, ok := m["repeatable_set_id"].(string)
			if !ok {
				return nil, fault.NewResponseError(JSONKeyResponses, fmt.Sprintf("response %d has neither a prompt_id nor a repeatable_set_id", i), nil)
			}
			if _, dup := out[id]; dup {
				return nil, fault.NewResponseError(id, "the item was answered more than once", nil)
			}
			if s, ok := m["responses"].(string); ok {
				// SKIPPED or NOT_DISPLAYED
				out[id] = s
				continue
			}
			iterations, ok := m["responses"].([]any)
			if !ok {
				return nil, fault.NewResponseError(id, "the repeatable set responses must be a list of iterations", nil)
			}
			list := make([]any, 0, len(iterations))
			for _, iter := range iterations {
				values, err := responseValues(iter)
				if err != nil {
					return nil, err
				}
				list = append(list, values)
			}
			out[id] = list
		}
		return out, nil
	}
	return nil, fault.NewResponseError(JSONKeyResponses, fmt.Sprintf("the responses must be a list or an object, got %T", raw), nil)
}
