package bizerror

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("record not found")
	ErrTooManyRequests = errors.New("too many requests")

	// access gate rejections
	ErrTokenRequired   = errors.New("token required")
	ErrTokenInvalid    = errors.New("token invalid or expired")
	ErrIdentityUnknown = errors.New("identity unknown or inactive")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	var data interface{}
	if e.Cause != nil {
		message = e.Cause.Error()

		var validationErrors validator.ValidationErrors
		if errors.As(e.Cause, &validationErrors) {
			violations := make([]FieldViolation, 0, len(validationErrors))
			for _, fe := range validationErrors {
				violations = append(violations, FieldViolation{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
			}
			data = violations
		}
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: data, Cause: e.Cause}
}

// ErrConflict reports a uniqueness violation.
type ErrConflict struct {
	Message string
	Cause   error
}

func (e *ErrConflict) Unwrap() error {
	return e.Cause
}
func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "common.conflict"
}
func (e *ErrConflict) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusConflict, Code: "common.conflict", Message: e.Error(), Cause: e.Cause}
}
