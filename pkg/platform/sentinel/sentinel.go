package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Key-value backends, token ledger
// adapters and event sinks return these (optionally wrapped) so services can
// translate them into domain errors:
// - ErrNotFound: key does not exist in the store
// - ErrConflict: a concurrent writer changed data this transaction read
// - ErrUnavailable: backend or remote service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
