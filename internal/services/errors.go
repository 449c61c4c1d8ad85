package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Failure taxonomy shared by the handlers. Handlers map these onto the
// contractual status codes; anything else is a 500.
var (
	ErrUnauthorized       = errors.New("Unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidToken       = errors.New("Invalid shipment token")
	ErrLinkExpired        = errors.New("This link is no longer active")
	ErrUnsupportedMedia   = errors.New("only PDF files are accepted")
	ErrProcessingFailed   = errors.New("failed to process PDF")
	ErrStorageFailed      = errors.New("failed to upload file to storage")
	ErrPersistenceFailed  = errors.New("failed to save shipment to database")
	ErrConfirmationFailed = errors.New("failed to confirm shipment")
	ErrNoFileAttached     = errors.New("No file attached")
	ErrFileMissing        = errors.New("File not found in storage")
)

// FieldError describes a single invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field failure found in a request.
// Validation never short-circuits on the first bad field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError if it is one
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// newValidationError converts validator output into the field-level shape
// returned to clients.
func newValidationError(err error) *ValidationError {
	ve := &ValidationError{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ve.Fields = append(ve.Fields, FieldError{Field: "request", Message: err.Error()})
		return ve
	}
	for _, fe := range verrs {
		msg := fe.Tag()
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "gt":
			msg = "must be positive"
		case "min":
			msg = "needs at least " + fe.Param() + " entry"
		case "uuid":
			msg = "must be a valid id"
		}
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Namespace(), Message: msg})
	}
	return ve
}
