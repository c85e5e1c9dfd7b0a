package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kava-labs/body-rewrite-proxy/service/outcomemdw"
)

// createHealthcheckHandler creates a health check handler function that
// will respond 200 ok if the proxy service is able to connect to
// it's dependencies and functioning as expected
func createHealthcheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var combinedErrors error

		service.Debug().Msg("/healthcheck called")

		// check that the database is reachable
		err := service.Database.HealthCheck()
		if err != nil {
			service.Logger.Error().
				Err(err).
				Msg("database healthcheck failed")

			errMsg := fmt.Errorf("proxy service unable to connect to database")
			combinedErrors = errors.Join(combinedErrors, errMsg)
		}

		if service.Outcomes.IsEnabled() {
			// check that the cache is reachable
			err := service.Outcomes.Healthcheck(r.Context())
			if err != nil {
				service.Logger.Error().
					Err(err).
					Msg("cache healthcheck failed")

				errMsg := fmt.Errorf("proxy service unable to connect to cache: %v", err)
				combinedErrors = errors.Join(combinedErrors, errMsg)
			}
		}

		if combinedErrors != nil {
			w.WriteHeader(http.StatusInternalServerError)

			w.Write([]byte(combinedErrors.Error()))

			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("proxy service is healthy"))
	}
}

// createServicecheckHandler creates a service check handler function that
// will respond 200 ok if the proxy service is running
func createServicecheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/servicecheck called")

		w.WriteHeader(http.StatusOK)

		w.Write([]byte("proxy service is in service"))
	}
}

// createRewriteOutcomeHandler creates a handler function responding
// with the outcome recorded for the request id given by the
// RewriteOutcomeRequestIDQueryParam query parameter
func createRewriteOutcomeHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg(fmt.Sprintf("%s called", RewriteOutcomePath))

		if !service.Outcomes.IsEnabled() {
			writeErrorResponse(service, w, http.StatusServiceUnavailable, outcomemdw.ErrOutcomeRecordingDisabled)
			return
		}

		requestID := r.URL.Query().Get(RewriteOutcomeRequestIDQueryParam)
		if requestID == "" {
			writeErrorResponse(service, w, http.StatusBadRequest, fmt.Errorf("missing %s query parameter", RewriteOutcomeRequestIDQueryParam))
			return
		}

		outcome, err := service.Outcomes.GetOutcome(r.Context(), requestID)
		if err != nil {
			if errors.Is(err, outcomemdw.ErrOutcomeNotFound) {
				writeErrorResponse(service, w, http.StatusNotFound, err)
				return
			}

			service.Error().Err(err).Msg(fmt.Sprintf("error getting outcome for request %s", requestID))
			writeErrorResponse(service, w, http.StatusInternalServerError, err)

			return
		}

		// return response for client
		if err := MarshalJSONResponse(outcome, w); err != nil {
			service.Error().Msg(fmt.Sprintf("error %s encoding outcome for request %s to json", err, requestID))
		}
	}
}

func writeErrorResponse(service *ProxyService, w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := MarshalJSONResponse(ErrorResponse{Error: err.Error()}, w); err != nil {
		service.Error().Msg(fmt.Sprintf("error %s encoding error response to json", err))
	}
}

// MarshalJSONResponse marshals an interface into the response body and sets JSON content type headers
func MarshalJSONResponse(obj interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		return err
	}
	return nil
}
