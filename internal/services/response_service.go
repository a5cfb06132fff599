package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paulexconde/surveysense/internal/models"
	"github.com/paulexconde/surveysense/internal/pkg/paginator"
	"github.com/paulexconde/surveysense/internal/pkg/store"
	"github.com/paulexconde/surveysense/internal/pkg/workerpool"
	"github.com/paulexconde/surveysense/internal/survey"
	"github.com/paulexconde/surveysense/pkg/fault"
	"github.com/paulexconde/surveysense/pkg/log"
)

const responseColumns = "id, response_key, survey_id, launch_time, launch_timezone, active_triggers, responses, created_at"

// UploadOptions tunes batch uploads.
type UploadOptions struct {
	// Workers validating submissions concurrently.
	Workers int
	// QueueSize bounds the validation jobs waiting for a worker.
	QueueSize int
	// Retries is the number of attempts made to store each response.
	Retries    int
	RetryDelay time.Duration
}

func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		Workers:    4,
		QueueSize:  16,
		Retries:    3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// UploadResult reports what a batch upload stored. DuplicateIndexes are
// positions in the batch whose response key was already stored.
type UploadResult struct {
	Stored           []uuid.UUID `json:"stored"`
	DuplicateIndexes []int       `json:"duplicate_indexes"`
}

// Handles every response for every survey.
type SurveyResponseService interface {
	// Validate checks sub against the registered survey surveyID.
	Validate(ctx context.Context, surveyID string, sub survey.Submission) (*survey.SurveyResponse, error)
	// Save response
	SaveResponse(ctx context.Context, response *survey.SurveyResponse) (*models.SurveyResponse, error)
	// Upload validates every submission and, only if all are valid, stores
	// them. Submissions whose key is already stored are reported, not failed.
	Upload(ctx context.Context, surveyID string, subs []survey.Submission) (*UploadResult, error)
	ListResponses(ctx context.Context, surveyID string, page, limit int) (*paginator.PaginatedResponse[models.SurveyResponse], error)
	// RatingSummary classifies every stored answer to a 0 to 10 rating
	// prompt.
	RatingSummary(ctx context.Context, surveyID, promptID string) (*NPS, error)
}

type surveyResponseServiceImpl struct {
	surveyservice SurveyService
	responses     store.Datastorer[models.SurveyResponse]
	paginator     paginator.Paginator[models.SurveyResponse]
	opts          UploadOptions
}

// Instantiate the `SurveyResponseService`.
func NewSurveyResponseService(db *sqlx.DB, surveyservice SurveyService, opts UploadOptions) SurveyResponseService {
	defaults := DefaultUploadOptions()
	if opts.Workers < 1 {
		opts.Workers = defaults.Workers
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = defaults.QueueSize
	}
	if opts.Retries < 1 {
		opts.Retries = defaults.Retries
	}

	responses := store.NewDataStore[models.SurveyResponse](db, store.TableSurveyResponses)
	responses.SetHooks(store.Hooks{
		AfterSaveCommit: []func(ctx context.Context, data store.DTO, model any, isNew bool) store.AfterSaveCommitHook{
			logResponseSaved,
		},
	})

	return &surveyResponseServiceImpl{
		surveyservice: surveyservice,
		responses:     responses,
		paginator:     paginator.NewPaginator(responses),
		opts:          opts,
	}
}

func logResponseSaved(ctx context.Context, data store.DTO, model any, isNew bool) store.AfterSaveCommitHook {
	row, ok := model.(*models.SurveyResponse)
	if !ok {
		return nil
	}
	return func() {
		log.WithFields(log.Fields{"survey_id": row.SurveyID, "survey_key": row.ResponseKey}).Debug("survey response stored")
	}
}

func (s *surveyResponseServiceImpl) Validate(ctx context.Context, surveyID string, sub survey.Submission) (*survey.SurveyResponse, error) {
	if sub.SurveyID != "" && sub.SurveyID != surveyID {
		return nil, fault.NewResponseError(survey.JSONKeySurveyID, fmt.Sprintf("the response is for survey '%s', not '%s'", sub.SurveyID, surveyID), nil)
	}

	sv, err := s.surveyservice.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	return survey.NewResponse(sv, sub)
}

func (s *surveyResponseServiceImpl) SaveResponse(ctx context.Context, response *survey.SurveyResponse) (*models.SurveyResponse, error) {
	if response == nil {
		return nil, fault.NewClientError("the response is missing", nil)
	}

	values, err := json.Marshal(response.Responses())
	if err != nil {
		return nil, fault.NewInternalError("failed to encode the responses", err)
	}

	lc := response.LaunchContext()
	triggers := lc.ActiveTriggers
	if triggers == nil {
		triggers = []string{}
	}
	activeTriggers, err := json.Marshal(triggers)
	if err != nil {
		return nil, fault.NewInternalError("failed to encode the active triggers", err)
	}

	created, err := s.responses.Create(ctx, models.SurveyResponseDTO{
		ResponseKey:    response.Key().String(),
		SurveyID:       response.Survey().ID(),
		LaunchTime:     lc.LaunchTime.UnixMilli(),
		LaunchTimezone: lc.Timezone,
		ActiveTriggers: string(activeTriggers),
		Responses:      string(values),
		CreatedAt:      time.Now().UnixMilli(),
	})
	if err != nil {
		switch {
		case errors.Is(err, fault.ErrUniqueViolation):
			return nil, fault.NewClientError(fmt.Sprintf("the response '%s' is already stored", response.Key()), err)
		case errors.Is(err, fault.ErrForeignKeyViolation):
			return nil, fault.NewClientError(fmt.Sprintf("unknown survey '%s'", response.Survey().ID()), err)
		}
		return nil, fault.NewInternalError("failed to store the response", err)
	}

	return created.(*models.SurveyResponse), nil
}

func (s *surveyResponseServiceImpl) Upload(ctx context.Context, surveyID string, subs []survey.Submission) (*UploadResult, error) {
	if len(subs) == 0 {
		return &UploadResult{Stored: []uuid.UUID{}, DuplicateIndexes: []int{}}, nil
	}

	// Resolve the survey once so that an unknown id fails before any
	// submission is queued.
	if _, err := s.surveyservice.GetSurvey(ctx, surveyID); err != nil {
		return nil, err
	}

	validated := make([]*survey.SurveyResponse, len(subs))
	errs := make([]error, len(subs))

	pool := workerpool.NewWorkerPool(ctx, s.opts.Workers, s.opts.QueueSize)
	for i, sub := range subs {
		err := pool.Submit(ctx, func(ctx context.Context) {
			validated[i], errs[i] = s.Validate(ctx, surveyID, sub)
		})
		if err != nil {
			pool.Wait()
			pool.Shutdown(context.Background())
			return nil, err
		}
	}
	pool.Wait()
	pool.Shutdown(ctx)

	for i, err := range errs {
		if err != nil {
			log.Warnf("upload for survey %s rejected at submission %d: %v", surveyID, i, err)
			return nil, fmt.Errorf("submission %d: %w", i, err)
		}
	}

	result := &UploadResult{Stored: []uuid.UUID{}, DuplicateIndexes: []int{}}
	for i, response := range validated {
		save := workerpool.WithRetry(s.opts.Retries, s.opts.RetryDelay, func(ctx context.Context) error {
			_, err := s.SaveResponse(ctx, response)
			if err != nil && !fault.IsInternalError(err) {
				return workerpool.Permanent(err)
			}
			return err
		})

		err := save(ctx)
		switch {
		case err == nil:
			result.Stored = append(result.Stored, response.Key())
		case errors.Is(err, fault.ErrUniqueViolation):
			result.DuplicateIndexes = append(result.DuplicateIndexes, i)
		default:
			return result, fmt.Errorf("submission %d: %w", i, err)
		}
	}

	log.Infof("upload for survey %s: %d stored, %d duplicates", surveyID, len(result.Stored), len(result.DuplicateIndexes))
	return result, nil
}

func (s *surveyResponseServiceImpl) ListResponses(ctx context.Context, surveyID string, page, limit int) (*paginator.PaginatedResponse[models.SurveyResponse], error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE survey_id = ? ORDER BY id", responseColumns, s.responses.Table())
	res, err := s.paginator.PaginateQuery(ctx, query, []any{surveyID}, page, limit)
	if err != nil {
		return nil, fault.NewInternalError("failed to list responses", err)
	}
	return res, nil
}
