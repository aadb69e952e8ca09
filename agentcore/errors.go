package agentcore

import "errors"

var (
	// ErrTurnInProgress is returned by RunTurn when the session already
	// has an in-flight turn. Turns are serialized, never queued.
	ErrTurnInProgress = errors.New("agentcore: concurrent turn not allowed")

	// ErrSessionClosed is returned when operating on a closed session.
	ErrSessionClosed = errors.New("agentcore: session is closed")
)
