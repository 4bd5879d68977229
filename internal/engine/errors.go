package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/src-lua/apogee/internal/storage"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransitionError is returned for status changes outside
// pending -> {completed, not_necessary, not_did} -> pending.
type TransitionError struct {
	From storage.InstanceStatus
	To   storage.InstanceStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot move instance from %s to %s", e.From, e.To)
}

func (e TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ClockSkewError records the wall clock moving backwards between ledger
// accesses. It is logged, never returned to callers.
type ClockSkewError struct {
	Previous time.Time
	Now      time.Time
}

func (e ClockSkewError) Error() string {
	return fmt.Sprintf("clock moved backwards by %s", e.Previous.Sub(e.Now))
}

// CorruptionError describes a derived value that violated an invariant and
// was repaired in place. It is logged, never returned to callers.
type CorruptionError struct {
	What string
}

func (e CorruptionError) Error() string {
	return "data corruption repaired: " + e.What
}
