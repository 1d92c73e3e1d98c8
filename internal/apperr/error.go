package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
)

// Error описывает ошибку на границе API: категория, сообщение, ошибки полей и причина.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is сравнивает по категории и сообщению: sentinel с добавленной причиной остаётся тем же sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

// WithCause возвращает копию ошибки с причиной; исходный sentinel не меняется.
func (e *Error) WithCause(cause error) *Error {
	out := *e
	out.Cause = cause
	return &out
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation: отказ с ошибками по полям; в конверт уходит как data.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed: " + joinFields(fields), Fields: fields}
}

// Conflict: конфликт данных с указанием поля, например дубликат логина.
func Conflict(field, message string) *Error {
	return &Error{Kind: KindDataConflict, Message: field + ": " + message, Fields: map[string]string{field: message}}
}

// InvalidArgument: бизнес-ошибка, текст которой показывается клиенту после фильтрации.
func InvalidArgument(message string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

func MissingParameter(name string) *Error {
	return &Error{Kind: KindMissingParameter, Message: "missing required parameter " + name}
}

// From классифицирует произвольную ошибку. Никогда не возвращает nil для err != nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := Validation(FieldErrors(ve))
		out.Cause = err
		return out
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return Wrap(KindTypeMismatch, err, "request body type mismatch")
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return Wrap(KindMalformedRequest, err, "request body is not readable")
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return Wrap(KindNotFound, err, "record not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return Wrap(KindDataConflict, err, "unique constraint violated")
		case strings.HasPrefix(pgErr.Code, "23"):
			return Wrap(KindConstraintViolation, err, "integrity constraint violated")
		default:
			return Wrap(KindDataAccess, err, "database error")
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(KindDataAccess, err, "database unavailable")
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Wrap(KindDataAccess, err, "backing store circuit open")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindRuntime, err, "deadline exceeded")
	}

	return Wrap(KindUnclassified, err, "")
}

func joinFields(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return strings.Join(names, ",")
}
