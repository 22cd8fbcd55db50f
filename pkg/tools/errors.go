package tools

import (
	"fmt"

	"github.com/pkg/errors"
)

// ToolError marks a failure caused by the request rather than by a bug:
// unknown property names, missing years, bad metric values. Its message is
// safe to show to the model (and ultimately the user) as-is, unlike a
// programming error, which is reported opaquely.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

// NewToolError builds a user-facing tool error.
func NewToolError(format string, args ...any) *ToolError {
	return &ToolError{Message: fmt.Sprintf(format, args...)}
}

// IsToolError reports whether err (or anything it wraps) is a user-facing
// tool error.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}
