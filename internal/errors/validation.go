package errors

import (
	"sort"
	"strings"
)

// FieldErrors collects validation messages keyed by field name. It is the error collection
// business validations attach to a record instead of failing the call.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+strings.Join(f[field], ", "))
	}
	return strings.Join(parts, "; ")
}

// AsError converts the collection into a validation error, nil when empty
func (f FieldErrors) AsError() error {
	if f.Empty() {
		return nil
	}
	details := make(map[string]any, len(f))
	for field, msgs := range f {
		details[field] = msgs
	}
	return NewError(f.Error()).
		WithHint("Validation failed").
		WithReportableDetails(details).
		Mark(ErrValidation)
}
