package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindValidation.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, KindUnauthorized.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, KindForbidden.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindConflict.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindUpstream.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestWithErrorKeepsIdentity(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := fmt.Errorf("create user: %w", ErrEmailTaken.WithError(cause))

	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Nil(t, ErrEmailTaken.Err, "sentinel must not be mutated")
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestKindOfUnknown(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}

func TestErrorString(t *testing.T) {
	err := Validation("Invalid price range", map[string]string{"minPrice": "too big", "lga": "required"})
	assert.Equal(t, "validation_failed: Invalid price range (lga: required, minPrice: too big)", err.Error())

	up := Upstream("Could not load", errors.New("timeout"))
	assert.Equal(t, "upstream_error: Could not load: timeout", up.Error())
}
