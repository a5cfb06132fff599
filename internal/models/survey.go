package models

// SurveyDefinition is a registered survey. Definition holds the survey's
// generic document as JSON.
type SurveyDefinition struct {
	ID         int    `db:"id" json:"id"`
	SurveyID   string `db:"survey_id" json:"survey_id"`
	Title      string `db:"title" json:"title"`
	Definition string `db:"definition" json:"definition"`
	CreatedAt  int64  `db:"created_at" json:"created_at"` // epoch milliseconds
}

type SurveyDefinitionDTO struct {
	SurveyID   string `db:"survey_id"`
	Title      string `db:"title"`
	Definition string `db:"definition"`
	CreatedAt  int64  `db:"created_at"`
}

func (d SurveyDefinitionDTO) ToModel(id int) any {
	return &SurveyDefinition{
		ID:         id,
		SurveyID:   d.SurveyID,
		Title:      d.Title,
		Definition: d.Definition,
		CreatedAt:  d.CreatedAt,
	}
}

// SurveyResponse is a stored, validated response. ActiveTriggers and
// Responses are JSON documents; Responses maps item id to value.
type SurveyResponse struct {
	ID             int    `db:"id" json:"id"`
	ResponseKey    string `db:"response_key" json:"survey_key"`
	SurveyID       string `db:"survey_id" json:"survey_id"`
	LaunchTime     int64  `db:"launch_time" json:"launch_time"` // epoch milliseconds
	LaunchTimezone string `db:"launch_timezone" json:"launch_timezone"`
	ActiveTriggers string `db:"active_triggers" json:"active_triggers"`
	Responses      string `db:"responses" json:"responses"`
	CreatedAt      int64  `db:"created_at" json:"created_at"`
}

type SurveyResponseDTO struct {
	ResponseKey    string `db:"response_key"`
	SurveyID       string `db:"survey_id"`
	LaunchTime     int64  `db:"launch_time"`
	LaunchTimezone string `db:"launch_timezone"`
	ActiveTriggers string `db:"active_triggers"`
	Responses      string `db:"responses"`
	CreatedAt      int64  `db:"created_at"`
}

func (d SurveyResponseDTO) ToModel(id int) any {
	return &SurveyResponse{
		ID:             id,
		ResponseKey:    d.ResponseKey,
		SurveyID:       d.SurveyID,
		LaunchTime:     d.LaunchTime,
		LaunchTimezone: d.LaunchTimezone,
		ActiveTriggers: d.ActiveTriggers,
		Responses:      d.Responses,
		CreatedAt:      d.CreatedAt,
	}
}
