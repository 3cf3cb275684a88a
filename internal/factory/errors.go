package factory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing task, agent or assignment.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput reports a malformed argument such as an unknown result status.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoCapacity reports that no active agent exists to receive work.
	ErrNoCapacity = errors.New("no agents available")
	// ErrInvalidTransition reports a status change the task state machine forbids.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrInvalidInput)
)
