package marketdata

import "errors"

// Failure classes shared across the fetch and stream pipelines. Callers branch
// with errors.Is; concrete causes are wrapped with fmt.Errorf("...: %w", ...).
var (
	// ErrTransport covers network and timeout failures talking to a source.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol means the source answered with an explicit error envelope.
	ErrProtocol = errors.New("source reported error")

	// ErrSchema means a message could not be interpreted: unrecognized
	// discriminant, or required fields absent or non-numeric.
	ErrSchema = errors.New("schema mismatch")

	// ErrPersistence covers store write failures other than trade duplicates.
	ErrPersistence = errors.New("persistence failure")
)
