package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnknownMode = errors.New("unknown result mode")
)

// MoveOrdersError aborts a move operation when a moved point has no
// counterpart in the new solver result.
type MoveOrdersError struct {
	Target string
	Ref    EntityRef
}

func (e *MoveOrdersError) Error() string {
	return fmt.Sprintf("move orders: point %s can not be moved to %s route", e.Ref, e.Target)
}
