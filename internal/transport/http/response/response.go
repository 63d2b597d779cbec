package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"easyrent/pkg/apperrors"
)

// Envelope is the body of every response. statusCode always equals the HTTP status.
type Envelope struct {
	Status     string            `json:"status"`
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message,omitempty"`
	Data       any               `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func Success(code int, data any) Envelope {
	return Envelope{Status: StatusSuccess, StatusCode: code, Data: data}
}

func Failure(code int, msg string, fields map[string]string) Envelope {
	return Envelope{Status: StatusFailed, StatusCode: code, Message: messageFor(code, msg), Errors: fields}
}

func OK(c *gin.Context, code int, data any) {
	c.JSON(code, Success(code, data))
}

// Message answers with a message and no data (e.g. reset mail sent).
func Message(c *gin.Context, code int, msg string) {
	c.JSON(code, Envelope{Status: StatusSuccess, StatusCode: code, Message: msg})
}

// Abort writes a failure envelope and stops the handler chain.
func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Failure(code, msg, nil))
}

// FromError maps err to its envelope. The second result is the cause worth
// logging: it is nil for errors the caller made (4xx).
func FromError(err error) (Envelope, error) {
	if ae, ok := apperrors.As(err); ok {
		code := ae.Kind.HTTPStatus()
		env := Failure(code, ae.Message, ae.Fields)
		if code >= http.StatusInternalServerError {
			return env, err
		}
		return env, nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		return Failure(http.StatusBadRequest, "Validation failed", fieldErrors(ves)), nil
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return Failure(http.StatusRequestEntityTooLarge, "", nil), nil
	}
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return Failure(http.StatusBadRequest, "Malformed request body", nil), nil
	case errors.As(err, &te):
		return Failure(http.StatusBadRequest, "Invalid field type", map[string]string{te.Field: "must be " + te.Type.String()}), nil
	}
	return Failure(http.StatusInternalServerError, "", nil), err
}

// Fail writes the envelope for err. Causes of server-side failures are
// attached to the gin context so the access log can record them.
func Fail(c *gin.Context, err error) {
	env, cause := FromError(err)
	if cause != nil {
		_ = c.Error(cause)
	}
	c.AbortWithStatusJSON(env.StatusCode, env)
}

func fieldErrors(ves validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ves))
	for _, fe := range ves {
		out[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param() + lengthUnit(fe)
	case "max":
		return "must be at most " + fe.Param() + lengthUnit(fe)
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	}
	return "failed " + fe.Tag() + " check"
}

func lengthUnit(fe validator.FieldError) string {
	switch fe.Kind().String() {
	case "string":
		return " characters"
	case "slice", "array", "map":
		return " items"
	}
	return ""
}
