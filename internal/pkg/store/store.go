package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

// DTO is the insertable form of a row. ToModel builds the stored model once
// the database has assigned its id.
type DTO interface {
	ToModel(id int) any
}

// This type of hook separates from the regular PostSave hook since it has side effects
type AfterSaveCommitHook func()

// Hooks for database operations
type Hooks struct {
	PreSave         []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error
	PostSave        []func(ctx context.Context, tx *sqlx.Tx, data DTO, model any, isNew bool) error
	PreDelete       []func(ctx context.Context, tx *sqlx.Tx, id int) error
	PostDelete      []func(ctx context.Context, tx *sqlx.Tx, id int) error
	AfterSaveCommit []func(ctx context.Context, data DTO, model any, isNew bool) AfterSaveCommitHook
}

// Datastorer is a table-backed store of T rows. Queries passed to QueryRow,
// Get and Select use '?' placeholders; they are rebound for the
// underlying driver.
type Datastorer[T any] interface {
	Create(ctx context.Context, data DTO) (any, error)
	Update(ctx context.Context, id int, data DTO) (any, error)
	Delete(ctx context.Context, id int) error
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)

	// Set hooks.
	SetHooks(hooks Hooks)

	// Table is the name of the backing table.
	Table() string
}

func getStructFieldNamesFromInstance(instance any) []string {
	typ := reflect.TypeOf(instance)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	var fields []string

	for i := range typ.NumField() {
		dbTag := typ.Field(i).Tag.Get("db")
		if dbTag != "" && dbTag != "-" {
			fields = append(fields, dbTag)
		}
	}

	return fields
}

// arrayCast wraps a named placeholder for a slice field in a Postgres array
// cast. Other drivers receive slices as-is.
func arrayCast(driver string, field reflect.StructField, column string) string {
	if driver != DriverPostgres || field.Type.Kind() != reflect.Slice || field.Type.Elem().Kind() == reflect.Uint8 {
		return ":" + column
	}

	var pgArrayType string
	switch field.Type.Elem().Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		pgArrayType = "integer[]"
	case reflect.Float32, reflect.Float64:
		pgArrayType = "float[]"
	case reflect.Bool:
		pgArrayType = "boolean[]"
	default:
		pgArrayType = "text[]"
	}
	return fmt.Sprintf("CAST(:%s AS %s)", column, pgArrayType)
}

// getStructFieldsFromDTO extracts column names and named placeholders from
// a DTO struct.
func getStructFieldsFromDTO(driver string, dto DTO) (columns string, placeholders string) {
	t := reflect.TypeOf(dto)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var columnNames []string
	var placeholderNames []string

	for i := range t.NumField() {
		field := t.Field(i)

		dbTag := field.Tag.Get("db")
		if dbTag == "" || dbTag == "-" {
			continue
		}

		columnNames = append(columnNames, dbTag)
		placeholderNames = append(placeholderNames, arrayCast(driver, field, dbTag))
	}

	return strings.Join(columnNames, ", "), strings.Join(placeholderNames, ", ")
}

// getNonEmptyFieldsFromDTO builds the SET clause of an update from the
// DTO's non-empty fields and records their values in params.
func getNonEmptyFieldsFromDTO(driver string, dto DTO, params map[string]any) string {
	v := reflect.ValueOf(dto)
	t := reflect.TypeOf(dto)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
		t = t.Elem()
	}

	var fields []string

	for i := range v.NumField() {
		field := t.Field(i)
		value := v.Field(i)

		columnName := field.Tag.Get("db")
		if columnName == "-" {
			continue
		}
		if columnName == "" {
			columnName = strings.ToLower(field.Name)
		}

		// Skip empty fields
		if value.IsZero() {
			continue
		}

		fields = append(fields, fmt.Sprintf("%s = %s", columnName, arrayCast(driver, field, columnName)))
		params[columnName] = value.Interface()
	}

	return strings.Join(fields, ", ")
}
