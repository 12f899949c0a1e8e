// Package debug converts panics raised by sinks into errors.
package debug

import (
	"errors"
	"fmt"
)

var (
	ErrPanic = errors.New("panic")
)

type PanicErrorMessage struct {
	Msg        interface{}
	Inner      string
	Stacktrace []byte
}

func (e *PanicErrorMessage) Error() string {
	return fmt.Sprintf("panic: %s", e.Inner)
}

func (e *PanicErrorMessage) Unwrap() []error {
	return []error{ErrPanic}
}
