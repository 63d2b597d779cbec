package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind groups errors by how the transport must answer them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// HTTPStatus 与错误类别一一对应
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the single error type handlers return to the transport.
// Message is safe to show to callers; Err is the cause and only goes to logs.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on Code so copies made by WithError still satisfy errors.Is
// against the package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithError returns a copy carrying err as its cause.
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Validation(message string, fields map[string]string) *AppError {
	if message == "" {
		message = "Validation failed"
	}
	return &AppError{Kind: KindValidation, Code: "validation_failed", Message: message, Fields: fields}
}

func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: "not_found", Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Code: "conflict", Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: "forbidden", Message: message}
}

// Upstream wraps a store or provider failure.
func Upstream(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Code: "upstream_error", Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Code: "internal_error", Message: "Internal server error", Err: err}
}

// As extracts the *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}
