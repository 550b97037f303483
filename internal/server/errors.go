package server

import (
	"errors"
	"net/http"

	addondomain "github.com/mesaops/mesa/internal/addon/domain"
	"github.com/mesaops/mesa/internal/addon/transport"
	auditdomain "github.com/mesaops/mesa/internal/audit/domain"
	"github.com/gin-gonic/gin"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if terr := asTransportError(err); terr != nil {
		return mapTransportError(terr)
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(err.Error()),
					Code:    err.Error(),
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, addondomain.ErrRowNotFound),
		errors.Is(err, addondomain.ErrNotAssigned),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, addondomain.ErrAlreadyAssigned):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "addon is already assigned, refresh the working view",
		}
	case errors.Is(err, addondomain.ErrRowBusy):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "another change for this addon is still in flight, retry shortly",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// mapTransportError translates the remote service's error taxonomy onto this
// service's responses. Remote 404s and 409s indicate the working view went
// stale under the caller, so both messages steer toward a refresh.
func mapTransportError(terr *transport.Error) (int, errorPayload) {
	switch terr.Class {
	case transport.ClassValidation:
		fields := make([]ValidationError, 0, len(terr.Fields))
		for _, f := range terr.Fields {
			fields = append(fields, ValidationError{
				Field:   f.Field,
				Code:    "invalid_" + f.Field,
				Message: f.Message,
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fields,
		}
	case transport.ClassSession:
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "session expired",
		}
	case transport.ClassForbidden:
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "permission denied",
		}
	case transport.ClassNotFound:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "record no longer exists, refresh the working view",
		}
	case transport.ClassConflict:
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "record already exists, refresh the working view before retrying",
		}
	case transport.ClassConnectivity:
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "addon service unreachable",
		}
	default:
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "addon service request failed",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func asTransportError(err error) *transport.Error {
	var terr *transport.Error
	if errors.As(err, &terr) && terr != nil {
		return terr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, addondomain.ErrInvalidHostProduct),
		errors.Is(err, addondomain.ErrInvalidAddonProduct),
		errors.Is(err, addondomain.ErrInvalidAssignment),
		errors.Is(err, addondomain.ErrNothingToSave),
		errors.Is(err, addondomain.ErrUnknownField),
		errors.Is(err, addondomain.ErrInvalidFieldValue),
		errors.Is(err, addondomain.ErrQuantityRange),
		errors.Is(err, addondomain.ErrNegativePrice),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidLimit):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case addondomain.ErrInvalidHostProduct.Error():
		return "hostProductId"
	case addondomain.ErrInvalidAddonProduct.Error():
		return "addonProductId"
	case addondomain.ErrInvalidAssignment.Error():
		return "assignmentId"
	case addondomain.ErrNegativePrice.Error():
		return "special_price"
	case addondomain.ErrQuantityRange.Error():
		return "min_quantity"
	case "invalid_request":
		return "request"
	default:
		return ""
	}
}
