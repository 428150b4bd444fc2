package link

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition   = errors.New("link: invalid transition")
	ErrWaitTimeout         = errors.New("link: wait timed out")
	ErrNegotiationMismatch = errors.New("link: no common link speed")
	ErrVLsNotReady         = errors.New("link: data VLs not operational")
)

// TransitionError is returned for a target state not reachable from the
// current one. The state is left unchanged.
type TransitionError struct {
	From, To LinkState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("link: invalid transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// WaitError reports a bounded hardware wait that did not see Want.
type WaitError struct {
	What    string
	Want    string
	Last    string
	Timeout time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("link: %s did not reach %s within %s (last %s)", e.What, e.Want, e.Timeout, e.Last)
}

func (e *WaitError) Unwrap() error { return ErrWaitTimeout }
