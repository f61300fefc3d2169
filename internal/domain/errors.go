package domain

import "errors"

// Sentinel errors for the pipeline error taxonomy. Stage-local failures
// never terminate a worker process; these let callers distinguish expected
// conditions from unexpected ones.
var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a fingerprint collision: the item is already
	// ingested. Treated as a skip, not a failure.
	ErrDuplicate = errors.New("duplicate content")

	// ErrAlreadyProcessed indicates the article's processed flag was
	// already set. Duplicate deliveries land here and are safe no-ops.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrAlreadyIndexed indicates the article's indexed flag was already
	// set.
	ErrAlreadyIndexed = errors.New("already indexed")
)
