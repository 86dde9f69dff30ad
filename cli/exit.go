package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbshop/storefront/api"
	"github.com/mbshop/storefront/checkout"
	"github.com/mbshop/storefront/session"
)

// Exit codes.
const (
	exitSuccess    = 0
	exitValidation = 1
	exitRuntime    = 2
	exitNetwork    = 3
	exitConfig     = 4
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// exitFor maps an operation error to an ExitError. Validation failures and
// incomplete checkouts are user errors; backend failures are network
// errors; everything else is a runtime error.
func exitFor(op string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var verr *session.ValidationError
	var apiErr *api.Error
	switch {
	case errors.As(err, &verr):
		return exitError(exitValidation, "%s: %s", op, verr.Message)
	case errors.Is(err, checkout.ErrCheckoutIncomplete):
		return exitError(exitValidation, "%s: %v", op, err)
	case errors.As(err, &apiErr):
		return exitError(exitNetwork, "%s: %s", op, api.Message(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitError(exitRuntime, "%s: interrupted", op)
	default:
		return exitError(exitRuntime, "%s: %v", op, err)
	}
}
