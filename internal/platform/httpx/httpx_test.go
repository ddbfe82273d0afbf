package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("%w: order 9", ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, StatusFor(fmt.Errorf("%w: bad", ErrValidation)))
	assert.Equal(t, http.StatusConflict, StatusFor(Conflictf("key %s reused", "k")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(Invalidf("year is required")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestRespondErrorHidesUnexpectedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, errors.New("dial tcp: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Error)
}

func TestRespondErrorPassesDomainMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, NotFoundf("order %d not found", 4))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"order 4 not found"}`, rec.Body.String())
}

type sampleRequest struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func TestValidatorUsesJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Struct(sampleRequest{Status: "gone"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "quantity must be greater than 0")
	assert.Contains(t, err.Error(), "status must be one of [active inactive]")

	assert.NoError(t, v.Struct(sampleRequest{Name: "Olive Oil", Quantity: 2}))
}
