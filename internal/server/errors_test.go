package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/teamforge/internal/db"
	"github.com/jonathan/teamforge/internal/schedule"
	"github.com/jonathan/teamforge/internal/types"
)

func TestHTTPStatus(t *testing.T) {
	validatorErr := (&types.TeamFormationRequest{}).Validate()
	require.Error(t, validatorErr)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "validation", err: &ErrValidation{Field: "body", Message: "bad"}, want: http.StatusBadRequest},
		{name: "validator errors", err: validatorErr, want: http.StatusBadRequest},
		{name: "not found", err: &NotFoundError{Resource: "project", ID: "p1"}, want: http.StatusNotFound},
		{name: "wrapped db not found", err: fmt.Errorf("roadmap: %w", db.ErrNotFound), want: http.StatusNotFound},
		{name: "task not found", err: &schedule.TaskNotFoundError{TaskID: "S1-T9"}, want: http.StatusNotFound},
		{name: "deadline", err: fmt.Errorf("run: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation error: email - invalid format", (&ErrValidation{Field: "email", Message: "invalid format"}).Error())
	assert.Equal(t, "project not found: p1", (&NotFoundError{Resource: "project", ID: "p1"}).Error())

	req := &types.UpdateTaskStatusRequest{ProjectID: "not-a-uuid", TaskID: "S1-T1", Status: "blocked"}
	msg := ErrorMessage(req.Validate())
	assert.Contains(t, msg, "validation failed: ")
	assert.Contains(t, msg, "ProjectID: uuid")
	assert.Contains(t, msg, "Status: oneof=todo in_progress done")

	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
}
