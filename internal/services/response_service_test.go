package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paulexconde/surveysense/internal/survey"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// submission builds a feedback response. A nil mood is sent as an absent
// answer. key may be empty.
func submission(t *testing.T, key string, score, mood any) survey.Submission {
	t.Helper()
	doc := map[string]any{
		"survey_id": "feedback",
		"survey_launch_context": map[string]any{
			"launch_time":     int64(1700000000000),
			"launch_timezone": "Europe/Brussels",
			"active_triggers": []any{"daily"},
		},
		"responses": []any{
			map[string]any{"prompt_id": "score", "value": score},
			map[string]any{"prompt_id": "mood", "value": mood},
		},
	}
	if key != "" {
		doc["survey_key"] = key
	}

	sub, err := survey.SubmissionFromJSON(doc, nil)
	if err != nil {
		t.Fatalf("build submission: %v", err)
	}
	return sub
}

func newServices(t *testing.T) (SurveyService, SurveyResponseService) {
	t.Helper()
	db := openDB(t)
	surveys := NewSurveyService(db)
	if _, err := surveys.Register(context.Background(), feedbackSurvey(t, "Feedback")); err != nil {
		t.Fatalf("register survey: %v", err)
	}
	opts := DefaultUploadOptions()
	opts.RetryDelay = time.Millisecond
	return surveys, NewSurveyResponseService(db, surveys, opts)
}

func TestValidateResponse(t *testing.T) {
	ctx := context.Background()
	_, svc := newServices(t)

	r, err := svc.Validate(ctx, "feedback", submission(t, "", 7, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := r.Response("score"); v != int64(7) {
		t.Errorf("expected score 7, got %v (%T)", v, v)
	}
	if v, _ := r.Response("comment"); v != survey.Skipped {
		t.Errorf("expected an absent comment to be skipped, got %v", v)
	}
	if r.Key() == uuid.Nil {
		t.Error("expected a generated response key")
	}

	tests := []struct {
		name   string
		sub    survey.Submission
		itemID string
	}{
		{name: "out of range", sub: submission(t, "", 11, nil), itemID: "score"},
		{name: "required", sub: submission(t, "", nil, nil), itemID: "score"},
		{name: "unknown choice", sub: submission(t, "", 5, 4), itemID: "mood"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(ctx, "feedback", tt.sub)
			if !fault.IsResponseError(err) {
				t.Fatalf("expected a response error, got %v", err)
			}
			if got := fault.ItemID(err); got != tt.itemID {
				t.Errorf("expected item %s, got %s", tt.itemID, got)
			}
		})
	}

	if _, err := svc.Validate(ctx, "other", submission(t, "", 5, nil)); !fault.IsResponseError(err) {
		t.Errorf("expected a survey id mismatch to be rejected, got %v", err)
	}
}

func TestSaveResponse(t *testing.T) {
	ctx := context.Background()
	_, svc := newServices(t)

	key := uuid.NewString()
	r, err := svc.Validate(ctx, "feedback", submission(t, key, 10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row, err := svc.SaveResponse(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ResponseKey != key || row.SurveyID != "feedback" || row.LaunchTimezone != "Europe/Brussels" {
		t.Errorf("unexpected row %+v", row)
	}
	if row.LaunchTime != 1700000000000 {
		t.Errorf("expected the launch time in milliseconds, got %d", row.LaunchTime)
	}

	var triggers []string
	if err := json.Unmarshal([]byte(row.ActiveTriggers), &triggers); err != nil || len(triggers) != 1 || triggers[0] != "daily" {
		t.Errorf("unexpected active triggers %q", row.ActiveTriggers)
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(row.Responses), &values); err != nil {
		t.Fatalf("decode responses: %v", err)
	}
	if values["score"] != float64(10) || values["mood"] != float64(0) || values["comment"] != survey.Skipped {
		t.Errorf("unexpected stored responses %v", values)
	}

	_, err = svc.SaveResponse(ctx, r)
	if !fault.IsClientError(err) || !errors.Is(err, fault.ErrUniqueViolation) {
		t.Errorf("expected a duplicate key to be refused, got %v", err)
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	_, svc := newServices(t)

	first, second := uuid.NewString(), uuid.NewString()
	batch := []survey.Submission{
		submission(t, first, 9, 1),
		submission(t, second, 3, nil),
		submission(t, second, 3, nil),
		submission(t, "", 8, 0),
	}

	res, err := svc.Upload(ctx, "feedback", batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stored) != 3 {
		t.Errorf("expected 3 stored responses, got %d", len(res.Stored))
	}
	if len(res.DuplicateIndexes) != 1 || res.DuplicateIndexes[0] != 2 {
		t.Errorf("expected index 2 to be a duplicate, got %v", res.DuplicateIndexes)
	}
	if res.Stored[0].String() != first || res.Stored[1].String() != second {
		t.Errorf("expected responses stored in batch order, got %v", res.Stored)
	}

	res, err = svc.Upload(ctx, "feedback", []survey.Submission{submission(t, first, 9, 1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stored) != 0 || len(res.DuplicateIndexes) != 1 || res.DuplicateIndexes[0] != 0 {
		t.Errorf("expected the re-upload to be reported as a duplicate, got %+v", res)
	}

	page, err := svc.ListResponses(ctx, "feedback", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Count() != 3 {
		t.Errorf("expected 3 stored responses, got %d", page.Count())
	}
}

func TestUploadRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	_, svc := newServices(t)

	batch := []survey.Submission{
		submission(t, "", 9, 1),
		submission(t, "", 42, 1),
		submission(t, "", 5, 0),
	}

	_, err := svc.Upload(ctx, "feedback", batch)
	if !fault.IsResponseError(err) || fault.ItemID(err) != "score" {
		t.Fatalf("expected the invalid score to fail the batch, got %v", err)
	}

	page, err := svc.ListResponses(ctx, "feedback", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Count() != 0 {
		t.Errorf("expected nothing stored from a rejected batch, got %d", page.Count())
	}

	if _, err := svc.Upload(ctx, "missing", batch); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("expected an unknown survey to fail, got %v", err)
	}

	res, err := svc.Upload(ctx, "feedback", nil)
	if err != nil || len(res.Stored) != 0 {
		t.Errorf("expected an empty batch to store nothing, got %+v, %v", res, err)
	}
}

func TestListResponsesPaging(t *testing.T) {
	ctx := context.Background()
	_, svc := newServices(t)

	var batch []survey.Submission
	for i := range 5 {
		batch = append(batch, submission(t, "", i, nil))
	}
	if _, err := svc.Upload(ctx, "feedback", batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, err := svc.ListResponses(ctx, "feedback", 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Count() != 5 || page.Size() != 2 || page.TotalPages != 3 {
		t.Errorf("unexpected page %+v", page)
	}
	if page.PrevPage == nil || *page.PrevPage != 1 || page.NextPage == nil || *page.NextPage != 3 {
		t.Errorf("unexpected prev/next %v/%v", page.PrevPage, page.NextPage)
	}
}
