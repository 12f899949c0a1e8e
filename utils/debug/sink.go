package debug

import (
	"fmt"
	"runtime/debug"
)

// Sink is the subset of a datagram sink the wrapper needs.
type Sink[M any] interface {
	Name() string
	OnDatagram(msg M) error
}

// PanicSinkWrapper recovers panics raised by the wrapped sink.
type PanicSinkWrapper[M any] struct {
	wrapped Sink[M]
}

func (p *PanicSinkWrapper[M]) Name() string {
	return p.wrapped.Name()
}

// OnDatagram calls the wrapped sink and converts a panic into a
// *PanicErrorMessage holding msg.
func (p *PanicSinkWrapper[M]) OnDatagram(msg M) (err error) {
	defer func() {
		if pErr := recover(); pErr != nil {
			err = &PanicErrorMessage{Msg: msg, Inner: fmt.Sprint(pErr), Stacktrace: debug.Stack()}
		}
	}()
	return p.wrapped.OnDatagram(msg)
}

func (p *PanicSinkWrapper[M]) Unwrap() Sink[M] {
	return p.wrapped
}

func WrapPanicSink[M any](wrapped Sink[M]) *PanicSinkWrapper[M] {
	return &PanicSinkWrapper[M]{wrapped: wrapped}
}
