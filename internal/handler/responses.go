package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/ledger"
	"github.com/osse101/riddlegroup/internal/logger"
)

// SuccessResponse represents a simple successful operation message
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// DataResponse represents a response with data payload
type DataResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// Response buffers are pooled; anything grown past maxPooledBuffer is left to the GC
const maxPooledBuffer = 64 << 10

var responseBuffers = sync.Pool{
	New: func() any { return bytes.NewBuffer(make([]byte, 0, 512)) },
}

// encodeJSON renders payload into a pooled buffer. release must be called once the
// bytes have been written.
func encodeJSON(payload any) (buf *bytes.Buffer, release func(), err error) {
	buf = responseBuffers.Get().(*bytes.Buffer)
	release = func() {
		if buf.Cap() <= maxPooledBuffer {
			buf.Reset()
			responseBuffers.Put(buf)
		}
	}
	if err = json.NewEncoder(buf).Encode(payload); err != nil {
		release()
		return nil, func() {}, err
	}
	return buf, release, nil
}

// respondJSON writes payload with status. Encoding happens first so a failure can still become a 500.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	buf, release, err := encodeJSON(payload)
	defer release()
	if err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
		http.Error(w, ErrMsgGenericServerError, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Error("Failed to write response buffer", "error", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError logs a failed service call and maps it to a client response
func respondServiceError(w http.ResponseWriter, r *http.Request, opName string, err error) {
	status, msg := mapServiceErrorToUserMessage(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error(fmt.Sprintf("%s failed", opName), "error", err)
	} else {
		log.Warn(fmt.Sprintf("%s rejected", opName), "error", err, "status", status)
	}
	respondError(w, status, msg)
}

// User-facing error messages for service errors
const (
	ErrMsgGenericServerError = "Something went wrong"
	ErrMsgUnknownError       = "Unknown error"

	ErrMsgGroupNotFoundError       = "Group not found"
	ErrMsgNotAuthorizedError       = "Caller is not authorized for this operation"
	ErrMsgNotCreatorError          = "Only the group creator can do that"
	ErrMsgWrongStateError          = "Group is not in a state that allows this operation"
	ErrMsgJoinWindowClosedError    = "The joining window for this group has closed"
	ErrMsgAlreadyMemberError       = "Participant is already a member"
	ErrMsgNotMemberError           = "Participant is not a member"
	ErrMsgGroupFullError           = "Group is full"
	ErrMsgCreatorCannotLeaveError  = "The creator cannot leave; disband the group instead"
	ErrMsgCostAcknowledgementError = "Acknowledged cost must equal the locked attempt cost of %d"
	ErrMsgInvalidCompositionError  = "Group composition is not allowed: %s"
	ErrMsgInsufficientTokensError  = "Not enough tokens to pay the disband fee"
	ErrMsgInvalidInputError        = "Invalid request. Please check your inputs."
)

// mapServiceErrorToUserMessage maps domain errors to HTTP statuses and messages
// clients can act upon
func mapServiceErrorToUserMessage(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, ErrMsgUnknownError
	}

	var costErr *domain.CostAcknowledgementError
	if errors.As(err, &costErr) {
		return http.StatusUnprocessableEntity, fmt.Sprintf(ErrMsgCostAcknowledgementError, costErr.Required)
	}
	var compErr *domain.CompositionError
	if errors.As(err, &compErr) {
		return http.StatusUnprocessableEntity, fmt.Sprintf(ErrMsgInvalidCompositionError, compErr.Reason)
	}

	switch {
	case errors.Is(err, domain.ErrGroupNotFound):
		return http.StatusNotFound, ErrMsgGroupNotFoundError
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, ErrMsgNotAuthorizedError
	case errors.Is(err, domain.ErrNotCreator):
		return http.StatusForbidden, ErrMsgNotCreatorError
	case errors.Is(err, domain.ErrWrongState):
		return http.StatusConflict, ErrMsgWrongStateError
	case errors.Is(err, domain.ErrJoinWindowClosed):
		return http.StatusConflict, ErrMsgJoinWindowClosedError
	case errors.Is(err, domain.ErrAlreadyMember):
		return http.StatusConflict, ErrMsgAlreadyMemberError
	case errors.Is(err, domain.ErrNotMember):
		return http.StatusConflict, ErrMsgNotMemberError
	case errors.Is(err, domain.ErrGroupFull):
		return http.StatusConflict, ErrMsgGroupFullError
	case errors.Is(err, domain.ErrCreatorCannotLeave):
		return http.StatusConflict, ErrMsgCreatorCannotLeaveError
	case errors.Is(err, domain.ErrInvalidCostAcknowledgement):
		return http.StatusUnprocessableEntity, ErrMsgInvalidInputError
	case errors.Is(err, domain.ErrInvalidComposition):
		return http.StatusUnprocessableEntity, ErrMsgInvalidInputError
	case errors.Is(err, ledger.ErrInsufficientTokens):
		return http.StatusPaymentRequired, ErrMsgInsufficientTokensError
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrMsgInvalidInputError
	}

	return http.StatusInternalServerError, ErrMsgGenericServerError
}
