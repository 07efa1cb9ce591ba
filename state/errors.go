package state

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrStateNotSet    = errors.New("period state field not set")
	ErrNoParticipants = errors.New("no participants to elect a leader from")
)

// StateNotSetError is returned when a field is read before the round that
// sets it has finished. It always indicates an ordering bug in the caller.
type StateNotSetError struct {
	Field string
}

func (e *StateNotSetError) Error() string {
	return fmt.Sprintf("'%s' field is not set", e.Field)
}

func (e *StateNotSetError) Is(target error) bool {
	return target == ErrStateNotSet
}
