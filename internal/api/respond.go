package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/factor"
	"pdufa-lab/internal/loader"
	"pdufa-lab/internal/storage"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks client errors that carry no sentinel of their own.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, factor.ErrUnknownFactor):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey), errors.Is(err, factor.ErrRequiredFactor):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, loader.ErrMissingTicker),
		errors.Is(err, loader.ErrInvalidRecord),
		errors.Is(err, analyzer.ErrReservedScenario):
		return http.StatusBadRequest
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}
