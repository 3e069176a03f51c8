package postgres

import (
	"database/sql"
	"errors"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

// paginate applies the filter limit and offset to a selector
func paginate(sel *entsql.Selector, filter *types.QueryFilter) *entsql.Selector {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	return sel.Limit(filter.GetLimit()).Offset(filter.GetOffset())
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// wrapError maps driver errors onto the error taxonomy
func wrapError(err error, hint string, details map[string]any) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	case isUniqueViolation(err):
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	default:
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrDatabase)
	}
}

// marshalJSON encodes v for a JSONB column. Strings are sent so the driver
// does not encode the payload as bytea.
func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
