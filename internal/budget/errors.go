package budget

import "errors"

// Sentinel errors. Structural-invariant violations (ErrCycleDetected,
// ErrConceptNotFound) abort the whole mutation; aggregation never returns
// them for missing data, it degrades to warnings instead.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateKey    = errors.New("duplicate concept code")
	ErrConceptNotFound = errors.New("concept not found")
	ErrInUse           = errors.New("concept still referenced by nodes")
	ErrCycleDetected   = errors.New("move would create a cycle")
	ErrInvalidOrder    = errors.New("invalid sibling order")
	ErrKindMismatch    = errors.New("operation not valid for concept kind")
)
