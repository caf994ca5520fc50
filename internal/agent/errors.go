package agent

import (
	"errors"
	"fmt"
)

var (
	ErrDisconnected   = errors.New("signaling connection closed")
	ErrPeerGone       = errors.New("peer disconnected")
	ErrMediaFailed    = errors.New("media source unavailable")
	ErrConnectFailed  = errors.New("connection establishment failed")
	ErrServerRejected = errors.New("coordinator rejected request")
)

// SessionError wraps a failure with the operation that produced it.
type SessionError struct {
	Op     string
	Err    error
	Detail string
}

func (e *SessionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func WrapError(op string, err error, detail string) *SessionError {
	return &SessionError{Op: op, Err: err, Detail: detail}
}
