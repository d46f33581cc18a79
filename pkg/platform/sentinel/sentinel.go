package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint or optimistic write lost a race
//
// Domain-level rejections (capacity, lifecycle state, bad input) travel as
// coded errors from pkg/domain-errors, raised by the models inside store
// callbacks and propagated unchanged.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
