package orgclient

import (
	"errors"
	"fmt"
)

var (
	ErrProposalRejected   = errors.New("proposal rejected")
	ErrTransactionInvalid = errors.New("transaction invalidated")
	ErrIdentityMismatch   = errors.New("agent serves another organization")
)

// StatusError is returned when the agent answers a non-2xx status.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: agent answered %d: %s", e.Op, e.Status, e.Message)
}

// RejectedError carries the first rejected proposal response.
type RejectedError struct {
	Op       string
	Response string
	Status   int32
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s: node [%s] answered %d: %s", ErrProposalRejected, e.Op, e.Response, e.Status, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrProposalRejected
}
