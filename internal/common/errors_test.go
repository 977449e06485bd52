package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", NewError(ErrValidation, "bad"), http.StatusBadRequest},
		{"invalid code", ErrInvalidCode, http.StatusBadRequest},
		{"unauthorized", fmt.Errorf("gate: %w", ErrUnauthorized), http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"unique violation", &pgconn.PgError{Code: "23505"}, http.StatusConflict},
		{"notification", NewError(ErrNotification, "mail down"), http.StatusInternalServerError},
		{"oops wrapped kind", oops.Code("X").Wrap(NewError(ErrNotFound, "gone")), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromError(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Incorrect email or password", PublicMessage(NewError(ErrUnauthorized, "Incorrect email or password")))
	assert.Equal(t, "Something went wrong. Please try again later.", PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, ErrNotFound.Error(), PublicMessage(ErrNotFound))
}

func TestRespondWithDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithDomainError(rec, NewError(ErrForbidden, "You do not have permission to perform this action"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"status":"fail","message":"You do not have permission to perform this action"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	RespondWithDomainError(rec, errors.New("secret internals"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Something went wrong. Please try again later."}`, rec.Body.String())
}
