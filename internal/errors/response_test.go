package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorResponse(t *testing.T) {
	err := NewError("subscription sub_1 not found").
		WithHint("Subscription does not exist").
		WithReportableDetails(map[string]any{"subscription_id": "sub_1"}).
		Mark(ErrNotFound)

	resp := NewErrorResponse(err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Subscription does not exist", resp.Error.Display)
	assert.Equal(t, "subscription sub_1 not found", resp.Error.InternalError)
	assert.Equal(t, "sub_1", resp.Error.Details["subscription_id"])

	plain := NewErrorResponse(errors.New("boom"))
	assert.Equal(t, "An unexpected error occurred", plain.Error.Display)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewError("x").Mark(ErrNotFound), http.StatusNotFound},
		{"validation", FieldErrors{"quantity": {"must be greater than 0"}}.AsError(), http.StatusBadRequest},
		{"invalid argument", NewError("x").Mark(ErrInvalidArgument), http.StatusBadRequest},
		{"system", NewError("x").Mark(ErrSystem), http.StatusServiceUnavailable},
		{"unmarked", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
