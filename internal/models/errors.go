package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")

	ErrInvalidInput      = errors.New("invalid input")
	ErrLayerTimeout      = errors.New("layer timed out")
	ErrLayerFailure      = errors.New("layer failed")
	ErrPipelineExhausted = errors.New("pipeline exhausted")
	ErrContractViolation = errors.New("contract violation")
	ErrCancelled         = errors.New("curation cancelled")
)

// InvalidInputError rejects content or context before any layer runs.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput || target == ErrValidation
}

// LayerTimeoutError is absorbed by the engine and recorded on the result.
type LayerTimeoutError struct {
	Layer   string
	Timeout time.Duration
}

func (e *LayerTimeoutError) Error() string {
	return fmt.Sprintf("layer %s timed out after %s", e.Layer, e.Timeout)
}

func (e *LayerTimeoutError) Is(target error) bool { return target == ErrLayerTimeout }

// LayerFailureError wraps the underlying cause of a failed layer.
type LayerFailureError struct {
	Layer string
	Err   error
}

func (e *LayerFailureError) Error() string {
	return fmt.Sprintf("layer %s failed: %v", e.Layer, e.Err)
}

func (e *LayerFailureError) Is(target error) bool { return target == ErrLayerFailure }
func (e *LayerFailureError) Unwrap() error        { return e.Err }

// ContractViolationError reports a reasoning response that does not match the
// declared schema. It always reaches the engine wrapped in a LayerFailureError.
type ContractViolationError struct {
	Field  string
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("contract violation: %s %s", e.Field, e.Reason)
}

func (e *ContractViolationError) Is(target error) bool { return target == ErrContractViolation }

// PipelineExhaustedError means no layer produced a usable classification.
// Callers must treat it as "unable to classify", never as allow.
type PipelineExhaustedError struct {
	LayerErrors []LayerError
}

func (e *PipelineExhaustedError) Error() string {
	if len(e.LayerErrors) == 0 {
		return "pipeline exhausted: no layer produced a classification"
	}
	parts := make([]string, 0, len(e.LayerErrors))
	for _, le := range e.LayerErrors {
		parts = append(parts, le.Layer+": "+le.Message)
	}
	return "pipeline exhausted: " + strings.Join(parts, "; ")
}

func (e *PipelineExhaustedError) Is(target error) bool { return target == ErrPipelineExhausted }

// CancelledError is returned when the caller's context ends before a decision.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	if e.Err == nil {
		return ErrCancelled.Error()
	}
	return fmt.Sprintf("%s: %v", ErrCancelled, e.Err)
}

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }
func (e *CancelledError) Unwrap() error        { return e.Err }
