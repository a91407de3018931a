package service

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pushgate/pushgate/server/health"
	"github.com/pushgate/pushgate/server/pushgate"
)

// dispatchRequest is the body of a variant dispatch call.
type dispatchRequest struct {
	Criteria *pushgate.Criteria `json:"criteria"`
	Message  *pushgate.Message  `json:"message"`
}

// applicationDispatchRequest is the body of an application-wide dispatch
// call, fanning one message out over several variants.
type applicationDispatchRequest struct {
	VariantIDs []string           `json:"variant_ids"`
	Criteria   *pushgate.Criteria `json:"criteria"`
	Message    *pushgate.Message  `json:"message"`
}

// MakeHandler creates an HTTP handler for the dispatch API.
func MakeHandler(svc pushgate.Service, logger log.Logger, checkers map[string]health.Checker) http.Handler {
	r := mux.NewRouter()
	r.Handle("/api/v1/push/{variant_id}", dispatchHandler{svc, logger}).Methods("POST").Name("dispatch")
	r.Handle("/api/v1/push", applicationDispatchHandler{svc, logger}).Methods("POST").Name("dispatch_application")
	r.Handle("/healthz", health.Handler(logger, checkers)).Methods("GET", "HEAD").Name("healthz")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET").Name("metrics")
	return r
}

type dispatchHandler struct {
	svc    pushgate.Service
	logger log.Logger
}

func (h dispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	variantID := mux.Vars(r)["variant_id"]

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		encodeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if req.Message == nil {
		encodeError(w, http.StatusBadRequest, "message is required")
		return
	}

	outcome, err := h.svc.Dispatch(r.Context(), variantID, req.Criteria, req.Message)
	if err != nil {
		encodeServiceError(w, h.logger, err)
		return
	}

	// The outcome reports submission, not delivery.
	encodeJSON(w, http.StatusAccepted, outcome)
}

type applicationDispatchHandler struct {
	svc    pushgate.Service
	logger log.Logger
}

func (h applicationDispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req applicationDispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		encodeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if req.Message == nil {
		encodeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.VariantIDs) == 0 {
		encodeError(w, http.StatusBadRequest, "variant_ids is required")
		return
	}

	outcomes, err := h.svc.DispatchToApplication(r.Context(), req.VariantIDs, req.Criteria, req.Message)
	if err != nil {
		encodeServiceError(w, h.logger, err)
		return
	}

	encodeJSON(w, http.StatusAccepted, map[string]interface{}{"outcomes": outcomes})
}

func encodeServiceError(w http.ResponseWriter, logger log.Logger, err error) {
	if pushgate.IsInvalidArgument(err) {
		encodeError(w, http.StatusBadRequest, err.Error())
		return
	}
	level.Error(logger).Log("msg", "dispatch request failed", "err", err)
	encodeError(w, http.StatusInternalServerError, "internal error")
}

func encodeError(w http.ResponseWriter, status int, msg string) {
	encodeJSON(w, status, map[string]string{"error": msg})
}

func encodeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
