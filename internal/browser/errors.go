package browser

import (
	"errors"
	"fmt"
)

// InteractionError reports a failed primitive: a missing element, a
// navigation timeout, a detached page.
type InteractionError struct {
	Op       string
	Selector string
	Err      error
}

func (e *InteractionError) Error() string {
	switch {
	case e.Selector != "" && e.Err != nil:
		return fmt.Sprintf("%s %q: %v", e.Op, e.Selector, e.Err)
	case e.Selector != "":
		return fmt.Sprintf("%s %q failed", e.Op, e.Selector)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + " failed"
	}
}

func (e *InteractionError) Unwrap() error { return e.Err }

// ErrElementNotFound is wrapped when a required selector matches nothing.
var ErrElementNotFound = errors.New("element not found")

// Interaction wraps err as an InteractionError unless it already is one.
func Interaction(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InteractionError
	if errors.As(err, &ie) {
		return err
	}
	return &InteractionError{Op: op, Selector: selector, Err: err}
}

// NotFound builds the error for a required element that is absent.
func NotFound(op, selector string) error {
	return &InteractionError{Op: op, Selector: selector, Err: ErrElementNotFound}
}

// IsInteraction reports whether err carries an InteractionError.
func IsInteraction(err error) bool {
	var ie *InteractionError
	return errors.As(err, &ie)
}
