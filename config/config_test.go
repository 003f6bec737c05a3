package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leoportal/leo-portal-api/models"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
}

func TestNewDefaults(t *testing.T) {
	os.Unsetenv("CHECKIN_RADIUS_METERS")
	os.Unsetenv("REQUEST_TIMEOUT")
	os.Unsetenv("OPENAI_MODEL")
	conf := New()

	assert.Equal(t, DefaultCheckInRadiusMeters, conf.CheckInRadiusMeters)
	assert.Equal(t, 30*time.Second, conf.RequestTimeout)
	assert.Equal(t, "gpt-4o-mini", conf.OpenAIModel)
}

func TestNewInvalidRadiusFallsBack(t *testing.T) {
	os.Setenv("CHECKIN_RADIUS_METERS", "far")
	defer os.Unsetenv("CHECKIN_RADIUS_METERS")
	conf := New()

	assert.Equal(t, DefaultCheckInRadiusMeters, conf.CheckInRadiusMeters)
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var body models.ErrorMessageResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "error it borked", body.Response.Message)
	assert.Equal(t, "bad request", body.Response.Error)
}

func TestErrorStatusNilError(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("forbidden", http.StatusForbidden, rr, nil)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"Response":{"Message":"forbidden","Error":""}}`, rr.Body.String())
}
