package barrier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConfiguration = errors.New("barrier configuration invalid")
	ErrTimeout       = errors.New("barrier wait timed out")
	ErrTransport     = errors.New("barrier transport failure")
	ErrServerClosed  = errors.New("barrier server closed")
	ErrNotStarted    = errors.New("barrier server not started")
)

type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TimeoutError is returned by RequestResponses when the round did not complete
// in time. Missing lists the expected organizations not heard from.
type TimeoutError struct {
	Timeout time.Duration
	Missing []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s, missing organizations: [%s]", ErrTimeout, e.Timeout, strings.Join(e.Missing, ","))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrTransport, e.Op, e.Addr, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
