// Package health adds methods for checking the health of service
// dependencies.
package health

import (
	"net/http"

	"github.com/go-kit/log"
)

// Checker returns an error indicating if a service is in an unhealthy state.
// Checkers should be implemented by dependencies which can fail, like a DB.
type Checker interface {
	HealthCheck() error
}

// Handler returns an http.Handler that checks the status of all the
// dependencies. It responds with 200 OK when every backend reports healthy,
// and 500 otherwise.
func Handler(logger log.Logger, checkers map[string]Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !CheckHealth(logger, checkers) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// CheckHealth checks multiple checkers, returning false if any of them fail,
// and logs the reason a checker fails.
func CheckHealth(logger log.Logger, checkers map[string]Checker) bool {
	healthy := true
	for name, hc := range checkers {
		if err := hc.HealthCheck(); err != nil {
			log.With(logger, "component", "healthz").Log("err", err, "health-checker", name)
			healthy = false
		}
	}
	return healthy
}

// Nop returns a checker that always passes.
func Nop() Checker {
	return nop{}
}

type nop struct{}

func (nop) HealthCheck() error {
	return nil
}
