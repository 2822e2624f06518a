package protocol

import "fmt"

// InvalidError means a message or action failed schema validation. It is
// raised before any game logic runs and maps to status "invalid".
type InvalidError struct {
	Message string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid: %s", e.Message)
}

// Invalidf builds an InvalidError.
func Invalidf(format string, v ...any) error {
	return &InvalidError{Message: fmt.Sprintf(format, v...)}
}

// IllegalError means the requested action does not comply with the rules
// of the game. It maps to status "illegal".
type IllegalError struct {
	Message string
}

func (e *IllegalError) Error() string {
	return fmt.Sprintf("illegal: %s", e.Message)
}

// Illegalf builds an IllegalError.
func Illegalf(format string, v ...any) error {
	return &IllegalError{Message: fmt.Sprintf(format, v...)}
}
