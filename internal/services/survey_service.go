package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/internal/models"
	"github.com/paulexconde/surveysense/internal/pkg/paginator"
	"github.com/paulexconde/surveysense/internal/pkg/store"
	"github.com/paulexconde/surveysense/internal/survey"
	"github.com/paulexconde/surveysense/pkg/fault"
	"github.com/paulexconde/surveysense/pkg/log"
)

const definitionColumns = "id, survey_id, title, definition, created_at"

// Registers survey definitions and serves them back, parsed, to the
// response workflow.
type SurveyService interface {
	// Register stores s. Registering an identical survey again is a no-op.
	Register(ctx context.Context, s *survey.Survey) (*models.SurveyDefinition, error)
	// Update replaces the stored definition of s.ID().
	Update(ctx context.Context, s *survey.Survey) (*models.SurveyDefinition, error)
	// Remove deletes a survey that has no stored responses.
	Remove(ctx context.Context, surveyID string) error
	GetSurvey(ctx context.Context, surveyID string) (*survey.Survey, error)
	// Describe returns the survey's document restricted to opts.
	Describe(ctx context.Context, surveyID string, opts survey.JSONOptions) (map[string]any, error)
	// Schema returns the response schema, or the schema of one top-level
	// prompt when promptID is set.
	Schema(ctx context.Context, surveyID, promptID string) (concordia.Node, error)
	ListSurveys(ctx context.Context, page, limit int) (*paginator.PaginatedResponse[models.SurveyDefinition], error)
}

type surveyServiceImpl struct {
	definitions store.Datastorer[models.SurveyDefinition]
	paginator   paginator.Paginator[models.SurveyDefinition]

	mu    sync.RWMutex
	cache map[string]*survey.Survey
}

// Instantiate the SurveyService.
func NewSurveyService(db *sqlx.DB) SurveyService {
	definitions := store.NewDataStore[models.SurveyDefinition](db, store.TableSurveyDefinitions)

	s := &surveyServiceImpl{
		definitions: definitions,
		paginator:   paginator.NewPaginator(definitions),
		cache:       make(map[string]*survey.Survey),
	}

	definitions.SetHooks(store.Hooks{
		AfterSaveCommit: []func(ctx context.Context, data store.DTO, model any, isNew bool) store.AfterSaveCommitHook{
			s.onDefinitionSaved,
		},
		PreDelete: []func(ctx context.Context, tx *sqlx.Tx, id int) error{
			refuseWithResponses,
		},
		PostDelete: []func(ctx context.Context, tx *sqlx.Tx, id int) error{
			logDefinitionDeleted,
		},
	})

	return s
}

// refuseWithResponses keeps a definition while responses reference it,
// whatever the driver's foreign key enforcement.
func refuseWithResponses(ctx context.Context, tx *sqlx.Tx, id int) error {
	query := tx.Rebind(fmt.Sprintf(
		"SELECT COUNT(*) FROM %s r JOIN %s d ON d.survey_id = r.survey_id WHERE d.id = ?",
		store.TableSurveyResponses, store.TableSurveyDefinitions,
	))

	var stored int
	if err := tx.GetContext(ctx, &stored, query, id); err != nil {
		return err
	}
	if stored > 0 {
		return fmt.Errorf("%d stored responses: %w", stored, fault.ErrForeignKeyViolation)
	}
	return nil
}

func logDefinitionDeleted(ctx context.Context, tx *sqlx.Tx, id int) error {
	log.WithFields(log.Fields{"row": id}).Debug("survey definition deleted")
	return nil
}

func (s *surveyServiceImpl) onDefinitionSaved(ctx context.Context, data store.DTO, model any, isNew bool) store.AfterSaveCommitHook {
	row, ok := model.(*models.SurveyDefinition)
	if !ok {
		return nil
	}
	return func() {
		s.evict(row.SurveyID)
		log.WithFields(log.Fields{"survey_id": row.SurveyID, "new": isNew}).Info("survey definition saved")
	}
}

func (s *surveyServiceImpl) Register(ctx context.Context, sv *survey.Survey) (*models.SurveyDefinition, error) {
	doc, err := encodeDefinition(sv)
	if err != nil {
		return nil, err
	}

	existing, err := s.find(ctx, sv.ID())
	switch {
	case err == nil:
		if bytes.Equal([]byte(existing.Definition), doc) {
			return existing, nil
		}
		return nil, fault.NewClientError(fmt.Sprintf("a different survey is already registered as '%s'", sv.ID()), fault.ErrUniqueViolation)
	case !errors.Is(err, fault.ErrNotFound):
		return nil, err
	}

	created, err := s.definitions.Create(ctx, models.SurveyDefinitionDTO{
		SurveyID:   sv.ID(),
		Title:      sv.Title(),
		Definition: string(doc),
		CreatedAt:  time.Now().UnixMilli(),
	})
	if err != nil {
		if errors.Is(err, fault.ErrUniqueViolation) {
			return nil, fault.NewClientError(fmt.Sprintf("the survey '%s' is already registered", sv.ID()), err)
		}
		return nil, fault.NewInternalError("failed to store the survey", err)
	}

	return created.(*models.SurveyDefinition), nil
}

func (s *surveyServiceImpl) Update(ctx context.Context, sv *survey.Survey) (*models.SurveyDefinition, error) {
	doc, err := encodeDefinition(sv)
	if err != nil {
		return nil, err
	}

	existing, err := s.find(ctx, sv.ID())
	if err != nil {
		return nil, notFound(sv.ID(), err)
	}

	updated, err := s.definitions.Update(ctx, existing.ID, models.SurveyDefinitionDTO{
		Title:      sv.Title(),
		Definition: string(doc),
	})
	if err != nil {
		return nil, fault.NewInternalError("failed to update the survey", err)
	}

	return updated.(*models.SurveyDefinition), nil
}

func (s *surveyServiceImpl) Remove(ctx context.Context, surveyID string) error {
	existing, err := s.find(ctx, surveyID)
	if err != nil {
		return notFound(surveyID, err)
	}

	if err := s.definitions.Delete(ctx, existing.ID); err != nil {
		switch {
		case errors.Is(err, fault.ErrForeignKeyViolation):
			return fault.NewClientError(fmt.Sprintf("the survey '%s' has stored responses", surveyID), err)
		case errors.Is(err, fault.ErrNotFound):
			return notFound(surveyID, err)
		}
		return fault.NewInternalError("failed to remove the survey", err)
	}

	s.evict(surveyID)
	log.Infof("survey %s removed", surveyID)
	return nil
}

func (s *surveyServiceImpl) GetSurvey(ctx context.Context, surveyID string) (*survey.Survey, error) {
	s.mu.RLock()
	cached, ok := s.cache[surveyID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	row, err := s.find(ctx, surveyID)
	if err != nil {
		return nil, notFound(surveyID, err)
	}

	sv, err := survey.Parse([]byte(row.Definition))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[surveyID] = sv
	s.mu.Unlock()

	return sv, nil
}

func (s *surveyServiceImpl) Describe(ctx context.Context, surveyID string, opts survey.JSONOptions) (map[string]any, error) {
	sv, err := s.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return sv.ToJSON(opts), nil
}

func (s *surveyServiceImpl) Schema(ctx context.Context, surveyID, promptID string) (concordia.Node, error) {
	sv, err := s.GetSurvey(ctx, surveyID)
	if err != nil {
		return concordia.Node{}, err
	}
	if promptID != "" {
		if _, ok := sv.TopLevelPrompt(promptID); !ok {
			return concordia.Node{}, fault.NewClientError(fmt.Sprintf("the survey '%s' has no top-level prompt '%s'", surveyID, promptID), fault.ErrNotFound)
		}
	}
	return sv.Concordia(promptID), nil
}

func (s *surveyServiceImpl) ListSurveys(ctx context.Context, page, limit int) (*paginator.PaginatedResponse[models.SurveyDefinition], error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", definitionColumns, s.definitions.Table())
	return s.paginator.PaginateQuery(ctx, query, nil, page, limit)
}

func (s *surveyServiceImpl) find(ctx context.Context, surveyID string) (*models.SurveyDefinition, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE survey_id = ?", definitionColumns, s.definitions.Table())
	return s.definitions.Get(ctx, query, surveyID)
}

func (s *surveyServiceImpl) evict(surveyID string) {
	s.mu.Lock()
	delete(s.cache, surveyID)
	s.mu.Unlock()
}

// encodeDefinition renders the stored form of sv. Map keys are sorted, so
// equal surveys encode to equal bytes.
func encodeDefinition(sv *survey.Survey) ([]byte, error) {
	if sv == nil {
		return nil, fault.NewClientError("the survey is missing", nil)
	}
	doc, err := json.Marshal(sv.ToJSON(survey.AllFields))
	if err != nil {
		return nil, fault.NewInternalError("failed to encode the survey", err)
	}
	return doc, nil
}

func notFound(surveyID string, err error) error {
	if errors.Is(err, fault.ErrNotFound) {
		return fault.NewClientError(fmt.Sprintf("unknown survey '%s'", surveyID), err)
	}
	return fault.NewInternalError("failed to load the survey", err)
}
