package api

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork = errors.New("network error")
	ErrServer  = errors.New("server error")
)

// NetworkError reports a failed round trip: the request could not be sent,
// or the response could not be read or decoded.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return ErrNetwork.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", ErrNetwork, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrNetwork, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ServerError reports a non-2xx response.
type ServerError struct {
	Op     string
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e == nil {
		return ErrServer.Error()
	}
	msg := fmt.Sprintf("request failed with status code %d", e.Status)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }
