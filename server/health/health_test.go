package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
)

type fail struct{}

func (fail) HealthCheck() error {
	return errors.New("bad")
}

func TestCheckHealth(t *testing.T) {
	logger := log.NewNopLogger()

	assert.True(t, CheckHealth(logger, map[string]Checker{"pass": Nop()}))
	assert.False(t, CheckHealth(logger, map[string]Checker{
		"pass": Nop(),
		"fail": fail{},
	}))
}

func TestHealthzHandler(t *testing.T) {
	logger := log.NewNopLogger()

	handler := Handler(logger, map[string]Checker{"pass": Nop()})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	handler = Handler(logger, map[string]Checker{"fail": fail{}})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
