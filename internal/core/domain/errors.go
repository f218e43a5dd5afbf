package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoKnowledgeBase indicates no knowledge base could be resolved.
	// Callers render this as a "nothing configured" message.
	ErrNoKnowledgeBase = errors.New("no knowledge base configured")

	// ErrNoSession indicates an operation requires a loaded session.
	ErrNoSession = errors.New("no session loaded")

	// ErrNoAnswer indicates the remote API produced no usable answer.
	ErrNoAnswer = errors.New("no answer produced")

	// ErrRateLimited indicates the API rate limit was exceeded and the
	// retry budget is spent.
	ErrRateLimited = errors.New("rate limited")

	// ErrStreamAborted indicates the server sent a hard error mid-stream.
	// Any partial answer accumulated before the abort is discarded.
	ErrStreamAborted = errors.New("stream aborted by server")

	// ErrSyncInProgress indicates a description generation job is already
	// queued or running for the same knowledge base.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrNotConfigured indicates a required service dependency is missing.
	ErrNotConfigured = errors.New("not configured")
)
