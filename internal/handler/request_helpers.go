package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/osse101/riddlegroup/internal/logger"
)

// ValidationErrorResponse lists failed fields by their JSON name
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeRequest reads exactly one JSON object into a T and validates it.
// On false the 400 response has already been written.
//
//	req, ok := decodeRequest[JoinGroupRequest](w, r, "Join group")
//	if !ok {
//	    return
//	}
func decodeRequest[T any](w http.ResponseWriter, r *http.Request, action string) (T, bool) {
	var req T
	log := logger.FromContext(r.Context())

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(&req)
	if err == nil && dec.More() {
		err = errTrailingData
	}
	if err != nil {
		log.Warn(fmt.Sprintf("Failed to decode %s request", action), "error", err)
		respondError(w, http.StatusBadRequest, ErrMsgInvalidRequest)
		return req, false
	}

	if err := GetValidator().ValidateStruct(req); err != nil {
		log.Debug(fmt.Sprintf("%s request failed validation", action), "error", err)
		respondJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:  ErrMsgInvalidRequestSummary,
			Fields: FormatValidationError(err),
		})
		return req, false
	}
	return req, true
}

// requireQuery returns a non-empty query parameter or writes a 400
func requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	if v := r.URL.Query().Get(name); v != "" {
		return v, true
	}
	respondError(w, http.StatusBadRequest, fmt.Sprintf(ErrMsgMissingQueryParam, name))
	return "", false
}

func queryOr(r *http.Request, name, fallback string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return fallback
}

// groupIDParam parses the positive {id} route parameter or writes a 400
func groupIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		logger.FromContext(r.Context()).Warn("Invalid group id", "id", raw)
		respondError(w, http.StatusBadRequest, ErrMsgInvalidGroupID)
		return 0, false
	}
	return id, true
}
