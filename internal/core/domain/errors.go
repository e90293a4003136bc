package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotReady     = errors.New("result not ready")
	ErrInvalidState = errors.New("invalid task state")
	ErrInvalidInput = errors.New("invalid input")
	ErrConversion   = errors.New("conversion failed")
	ErrEvaluation   = errors.New("evaluation failed")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
