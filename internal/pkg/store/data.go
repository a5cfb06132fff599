package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/paulexconde/surveysense/pkg/fault"
	"github.com/paulexconde/surveysense/pkg/log"
)

type dataStore[T any] struct {
	db         *sqlx.DB
	tablename  string
	hooks      Hooks
	mu         sync.RWMutex
	dtoFactory func() any
}

// NewDataStore returns a Datastorer over tablename. The optional factory
// supplies the struct Update scans the updated row into; by default it is
// a new T.
func NewDataStore[T any](db *sqlx.DB, tablename string, dtoFactory ...func() any) Datastorer[T] {
	var factory func() any

	if len(dtoFactory) > 0 {
		factory = dtoFactory[0]
	}

	return &dataStore[T]{
		db:         db,
		tablename:  tablename,
		dtoFactory: factory,
	}
}

func (s *dataStore[T]) Table() string {
	return s.tablename
}

func (s *dataStore[T]) SetHooks(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks.PreSave = append(s.hooks.PreSave, hooks.PreSave...)
	s.hooks.PostSave = append(s.hooks.PostSave, hooks.PostSave...)
	s.hooks.PreDelete = append(s.hooks.PreDelete, hooks.PreDelete...)
	s.hooks.PostDelete = append(s.hooks.PostDelete, hooks.PostDelete...)
	s.hooks.AfterSaveCommit = append(s.hooks.AfterSaveCommit, hooks.AfterSaveCommit...)
}

func (s *dataStore[T]) currentHooks() Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

func (s *dataStore[T]) QueryRow(ctx context.Context, query string, args ...any) (any, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(query), args...)

	var result any

	if err := row.Scan(&result); err != nil {
		return nil, translateError(err)
	}

	return result, nil
}

func (s *dataStore[T]) Get(ctx context.Context, query string, args ...any) (*T, error) {
	var result T

	if err := s.db.GetContext(ctx, &result, s.db.Rebind(query), args...); err != nil {
		return nil, translateError(err)
	}

	return &result, nil
}

func (s *dataStore[T]) Select(ctx context.Context, query string, args ...any) ([]T, error) {
	results := []T{}

	if err := s.db.SelectContext(ctx, &results, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []T{}, nil
		}
		return nil, translateError(err)
	}

	return results, nil
}

func (s *dataStore[T]) Create(ctx context.Context, data DTO) (model any, err error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	hooks := s.currentHooks()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, hook := range hooks.PreSave {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = hook(ctx, tx, data, true); err != nil {
			return nil, err
		}
	}

	columns, placeholders := getStructFieldsFromDTO(s.db.DriverName(), data)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", s.tablename, columns, placeholders)

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer stmt.Close()

	var id int
	if err = stmt.QueryRowContext(ctx, data).Scan(&id); err != nil {
		err = translateError(err)
		return nil, err
	}

	model = data.ToModel(id)

	for _, hook := range hooks.PostSave {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = hook(ctx, tx, data, model, true); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, hooks, data, model, true)
	log.Debugf("store: created %s row %d", s.tablename, id)

	return model, nil
}

func (s *dataStore[T]) Update(ctx context.Context, id int, data DTO) (updated any, err error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	hooks := s.currentHooks()

	params := map[string]any{"id": id}
	setClause := getNonEmptyFieldsFromDTO(s.db.DriverName(), data, params)

	if setClause == "" {
		return nil, fmt.Errorf("no fields to update")
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, hook := range hooks.PreSave {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = hook(ctx, tx, data, false); err != nil {
			return nil, err
		}
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", s.tablename, setClause)

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, params)
	if err != nil {
		err = translateError(err)
		return nil, err
	}
	if n, rowsErr := res.RowsAffected(); rowsErr == nil && n == 0 {
		err = fault.ErrNotFound
		return nil, err
	}

	updated, err = s.getByIDBase(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	for _, hook := range hooks.PostSave {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = hook(ctx, tx, data, updated, false); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, hooks, data, updated, false)
	log.Debugf("store: updated %s row %d", s.tablename, id)

	return updated, nil
}

func (s *dataStore[T]) Delete(ctx context.Context, id int) (err error) {
	hooks := s.currentHooks()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, hook := range hooks.PreDelete {
		if err = hook(ctx, tx, id); err != nil {
			return err
		}
	}

	query := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tablename))

	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		err = translateError(err)
		return err
	}
	if n, rowsErr := res.RowsAffected(); rowsErr == nil && n == 0 {
		err = fault.ErrNotFound
		return err
	}

	for _, hook := range hooks.PostDelete {
		if err = hook(ctx, tx, id); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

func (s *dataStore[T]) afterCommit(ctx context.Context, hooks Hooks, data DTO, model any, isNew bool) {
	for _, hook := range hooks.AfterSaveCommit {
		if fn := hook(ctx, data, model, isNew); fn != nil {
			fn()
		}
	}
}

// getByIDBase reads a row inside tx so that single-connection databases
// do not wait on themselves.
func (s *dataStore[T]) getByIDBase(ctx context.Context, tx *sqlx.Tx, id int) (any, error) {
	var instance any
	if s.dtoFactory != nil {
		instance = s.dtoFactory()
	} else {
		instance = new(T)
	}

	fields := strings.Join(getStructFieldNamesFromInstance(instance), ", ")
	query := tx.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", fields, s.tablename))

	if err := tx.GetContext(ctx, instance, query, id); err != nil {
		return nil, translateError(err)
	}

	return instance, nil
}
