package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Class is the error taxonomy derived from transport status. Callers branch
// on the class, never on raw status codes.
type Class string

const (
	ClassValidation   Class = "validation"
	ClassSession      Class = "session"
	ClassForbidden    Class = "forbidden"
	ClassNotFound     Class = "not_found"
	ClassConflict     Class = "conflict"
	ClassConnectivity Class = "connectivity"
	ClassUnknown      Class = "unknown"
)

// FieldError is a single field violation reported by the remote service.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified remote operation failure. Status is zero for
// connectivity failures that never produced a response.
type Error struct {
	Class   Class
	Status  int
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// ClassOf returns the class of a transport error, or ClassUnknown when the
// error did not come from the transport.
func ClassOf(err error) Class {
	var terr *Error
	if errors.As(err, &terr) && terr != nil {
		return terr.Class
	}
	return ClassUnknown
}

// IsClass reports whether err is a transport error of the given class.
func IsClass(err error, class Class) bool {
	var terr *Error
	return errors.As(err, &terr) && terr != nil && terr.Class == class
}

// classify maps an HTTP status and decoded error body onto the taxonomy.
// Validation errors carry one aggregated message listing every violation.
func classify(status int, message string, fields []FieldError) *Error {
	switch status {
	case 400:
		return &Error{
			Class:   ClassValidation,
			Status:  status,
			Message: aggregateFieldErrors(message, fields),
			Fields:  fields,
		}
	case 401:
		return &Error{Class: ClassSession, Status: status, Message: "session expired"}
	case 403:
		return &Error{Class: ClassForbidden, Status: status, Message: "permission denied"}
	case 404:
		return &Error{Class: ClassNotFound, Status: status, Message: "record not found"}
	case 409:
		return &Error{Class: ClassConflict, Status: status, Message: "already exists"}
	default:
		if message == "" {
			message = fmt.Sprintf("status %d", status)
		}
		return &Error{
			Class:   ClassUnknown,
			Status:  status,
			Message: "addon service request failed: " + message,
		}
	}
}

func connectivityError(err error) *Error {
	return &Error{
		Class:   ClassConnectivity,
		Message: "addon service unreachable",
		cause:   err,
	}
}

func aggregateFieldErrors(message string, fields []FieldError) string {
	if len(fields) == 0 {
		if message == "" {
			return "validation failed"
		}
		return message
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
