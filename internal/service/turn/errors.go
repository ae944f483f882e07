package turn

import "errors"

var (
	// ErrTurnInProgress is returned when a message arrives while a reply is pending.
	ErrTurnInProgress = errors.New("turn in progress")
	// ErrEmptyMessage is returned for blank utterances.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrAlreadySubmitted is returned when the lead was already captured.
	ErrAlreadySubmitted = errors.New("lead already submitted")
	// ErrLeadPending is returned while another submission for the session is in flight.
	ErrLeadPending = errors.New("lead submission in progress")
	// ErrSessionClosed is returned once the session has been abandoned.
	ErrSessionClosed = errors.New("session closed")
)
