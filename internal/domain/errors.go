package domain

import (
	"errors"
	"fmt"
)

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Membership errors
	ErrMsgAlreadyMember      = "participant is already a member"
	ErrMsgNotMember          = "participant is not a member"
	ErrMsgGroupFull          = "group is full"
	ErrMsgCreatorCannotLeave = "creator cannot leave the group"

	// Cost errors
	ErrMsgInvalidCostAcknowledgement = "acknowledged cost does not match locked attempt cost"

	// Permission errors
	ErrMsgNotCreator    = "caller is not the group creator"
	ErrMsgNotAuthorized = "caller is not authorized"

	// Lifecycle errors
	ErrMsgGroupNotFound      = "group not found"
	ErrMsgWrongState         = "operation not allowed in current group state"
	ErrMsgJoinWindowClosed   = "group joining window has closed"
	ErrMsgInvalidComposition = "invalid group composition"

	// Accounting errors
	ErrMsgMalformedDistributionInput = "malformed distribution input"
	ErrMsgDilutionUnderflow          = "active group count would become negative"

	// Database/System errors
	ErrMsgTxClosed = "tx is closed"

	// Input errors
	ErrMsgInvalidInput = "invalid input"
)

// Common domain errors
// These errors should be used consistently across all layers of the application.
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	ErrAlreadyMember      = errors.New(ErrMsgAlreadyMember)
	ErrNotMember          = errors.New(ErrMsgNotMember)
	ErrGroupFull          = errors.New(ErrMsgGroupFull)
	ErrCreatorCannotLeave = errors.New(ErrMsgCreatorCannotLeave)

	ErrInvalidCostAcknowledgement = errors.New(ErrMsgInvalidCostAcknowledgement)

	ErrNotCreator    = errors.New(ErrMsgNotCreator)
	ErrNotAuthorized = errors.New(ErrMsgNotAuthorized)

	ErrGroupNotFound      = errors.New(ErrMsgGroupNotFound)
	ErrWrongState         = errors.New(ErrMsgWrongState)
	ErrJoinWindowClosed   = errors.New(ErrMsgJoinWindowClosed)
	ErrInvalidComposition = errors.New(ErrMsgInvalidComposition)

	ErrMalformedDistributionInput = errors.New(ErrMsgMalformedDistributionInput)
	ErrDilutionUnderflow          = errors.New(ErrMsgDilutionUnderflow)

	ErrTxClosed = errors.New(ErrMsgTxClosed)

	ErrInvalidInput = errors.New(ErrMsgInvalidInput)
)

// CompositionError reports why a member list failed composition validation.
// It matches ErrInvalidComposition with errors.Is.
type CompositionError struct {
	Reason string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMsgInvalidComposition, e.Reason)
}

func (e *CompositionError) Unwrap() error {
	return ErrInvalidComposition
}

// CostAcknowledgementError carries the exact amount a joiner must acknowledge.
// It matches ErrInvalidCostAcknowledgement with errors.Is.
type CostAcknowledgementError struct {
	Required     uint64
	Acknowledged uint64
}

func (e *CostAcknowledgementError) Error() string {
	return fmt.Sprintf("%s: required %d, got %d", ErrMsgInvalidCostAcknowledgement, e.Required, e.Acknowledged)
}

func (e *CostAcknowledgementError) Unwrap() error {
	return ErrInvalidCostAcknowledgement
}

// WrongStateError names the state that rejected an operation.
// It matches ErrWrongState with errors.Is.
type WrongStateError struct {
	Operation string
	Current   GroupState
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("%s: %s (current: %s)", ErrMsgWrongState, e.Operation, e.Current)
}

func (e *WrongStateError) Unwrap() error {
	return ErrWrongState
}
