package session

import "fmt"

// ConnectionError is any failure to open a session: cancelled selection, provider
// initialisation, or the first account/chain query.
type ConnectionError struct {
	Reason string
	Err    error
}

func newConnectionError(err error) *ConnectionError {
	return &ConnectionError{Reason: err.Error(), Err: err}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect wallet: %s", e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) UserMessage() string {
	return e.Reason
}
