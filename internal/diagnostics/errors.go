package diagnostics

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a caller input defect. Every error below that
	// wraps it maps to a 400 at the HTTP boundary.
	ErrValidation      = errors.New("diagnostics: invalid request")
	ErrMissingField    = fmt.Errorf("%w: type and target are required", ErrValidation)
	ErrInvalidTarget   = fmt.Errorf("%w: invalid target hostname or IP", ErrValidation)
	ErrUnsupportedType = fmt.Errorf("%w: unsupported diagnostic type", ErrValidation)

	ErrToolUnavailable = errors.New("diagnostics: tool unavailable")
	ErrExecutionFailed = errors.New("diagnostics: execution failed")
)
