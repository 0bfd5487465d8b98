package dispatch

import (
	"errors"
	"fmt"
)

var ErrPartitionDispatch = errors.New("partition dispatch failed")

const (
	PhaseImmediate = "immediate"
	PhaseWait      = "wait"
)

// PartitionError reports the first partition that failed an operation.
type PartitionError struct {
	Op    string
	MSPID string
	Phase string
	Err   error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("%s: %s for organization [%s] failed in %s phase: %s", ErrPartitionDispatch, e.Op, e.MSPID, e.Phase, e.Err)
}

func (e *PartitionError) Is(target error) bool {
	return target == ErrPartitionDispatch
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}
