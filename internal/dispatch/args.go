package dispatch

import (
	"errors"
	"fmt"
)

// validationError marks malformed input discovered after the required-field
// check, e.g. a field of the wrong type. It maps to a validation_error
// payload rather than an operation_error.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func isValidation(err error, target **validationError) bool {
	return errors.As(err, target)
}

// intField reads a required integer field. JSON numbers decode as float64.
func intField(input map[string]any, key string) (int64, error) {
	v, ok := input[key]
	if !ok {
		return 0, &validationError{msg: fmt.Sprintf("field %s is required", key)}
	}
	return coerceInt(v, key)
}

// optionalInt reads an optional integer field, zero when absent.
func optionalInt(input map[string]any, key string) (int, error) {
	v, ok := input[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, err := coerceInt(v, key)
	return int(n), err
}

// stringField reads a required string field.
func stringField(input map[string]any, key string) (string, error) {
	v, ok := input[key]
	if !ok {
		return "", &validationError{msg: fmt.Sprintf("field %s is required", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &validationError{msg: fmt.Sprintf("field %s must be a string", key)}
	}
	return s, nil
}

// optionalString reads an optional string field, empty when absent.
func optionalString(input map[string]any, key string) (string, error) {
	v, ok := input[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &validationError{msg: fmt.Sprintf("field %s must be a string", key)}
	}
	return s, nil
}

func coerceInt(v any, key string) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, &validationError{msg: fmt.Sprintf("field %s must be an integer", key)}
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, &validationError{msg: fmt.Sprintf("field %s must be an integer", key)}
	}
}
