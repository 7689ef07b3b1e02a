package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusBadRequest, "bad input")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bad input", gjson.Get(rec.Body.String(), "error").String())
}

func TestRespondRawPassesBodyThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondRaw(rec, http.StatusOK, []byte(`{"total":3}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":3}`, rec.Body.String())
}
