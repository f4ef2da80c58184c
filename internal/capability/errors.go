package capability

import (
	"errors"
	"fmt"
)

// ErrLeaderImmutable is returned when disabling the interaction tool is
// attempted. Nothing is persisted in that case.
var ErrLeaderImmutable = errors.New("leader tool cannot be disabled")

// PersistError reports a failure of the configuration collaborator.
type PersistError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("config %s failed: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
