package services

import (
	"context"
	"errors"
	"fmt"
)

// Effect is a side effect that was applied and knows how to revert itself.
type Effect struct {
	Name string
	Undo func(ctx context.Context) error
}

// Compensation records applied side effects so a failed save can revert
// them, newest first.
type Compensation struct {
	effects []Effect
}

func (c *Compensation) Record(e Effect) {
	c.effects = append(c.effects, e)
}

func (c *Compensation) Len() int { return len(c.effects) }

// Discard forgets recorded effects, e.g. once a transaction that contained
// them has been rolled back or committed.
func (c *Compensation) Discard() {
	c.effects = nil
}

// Undo reverts every recorded effect in reverse order. It keeps going after
// a failing undo and returns all failures joined.
func (c *Compensation) Undo(ctx context.Context) error {
	var errs []error
	for i := len(c.effects) - 1; i >= 0; i-- {
		e := c.effects[i]
		if err := e.Undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", e.Name, err))
		}
	}
	c.effects = nil
	return errors.Join(errs...)
}
