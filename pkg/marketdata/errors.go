package marketdata

import (
	"errors"
	"fmt"
)

// ErrDataContract is wrapped by every input contract violation.
var ErrDataContract = errors.New("data contract violation")

type ContractError struct {
	Source string
	Row    int
	Field  string
	Reason string
}

func (e *ContractError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s row %d: %s: %s", e.Source, e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Field, e.Reason)
}

func (e *ContractError) Unwrap() error {
	return ErrDataContract
}

func violation(source string, row int, field, format string, args ...interface{}) error {
	return &ContractError{Source: source, Row: row, Field: field, Reason: fmt.Sprintf(format, args...)}
}
