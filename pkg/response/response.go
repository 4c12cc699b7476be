// Package response defines the JSON envelope returned by all API handlers.
package response

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed. Check the request body.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var LinkExpiredResponse = Response{
	Status:  StatusError,
	Error:   "Link Expired",
	Message: "This link has expired.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 && data[0] != nil {
		resp.Data = data[0]
	}

	return resp
}

// ErrorResponse builds an error envelope for cases not covered by the
// predefined responses above.
func ErrorResponse(errName, msg string) Response {
	return Response{
		Status:  StatusError,
		Error:   errName,
		Message: msg,
	}
}

type validationError struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Issue string `json:"issue"`
}

// ValidationErrorResponse translates validator.ValidationErrors into a
// client-facing envelope with per-field details.
func ValidationErrorResponse(err error) Response {
	return Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid data.",
		Details: toAnySlice(getValidationErrors(err)),
	}
}

func getValidationErrors(err error) []validationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	errs := make([]validationError, 0, len(validationErrs))

	for _, e := range validationErrs {
		verr := validationError{
			Field: e.Field(),
			Value: stringValue(e.Value()),
		}

		switch e.Tag() {
		case "required":
			verr.Issue = "This field is required."
		case "url":
			verr.Issue = "Invalid url."
		case "alphanum":
			verr.Issue = "Only letters and digits are allowed."
		case "min":
			verr.Issue = "Value is too short."
		case "max":
			verr.Issue = "Value is too long."
		default:
			verr.Issue = "Invalid value."
		}

		errs = append(errs, verr)
	}

	return errs
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func toAnySlice(errs []validationError) []any {
	if len(errs) == 0 {
		return nil
	}

	details := make([]any, 0, len(errs))
	for _, e := range errs {
		details = append(details, e)
	}

	return details
}
