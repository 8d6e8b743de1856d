package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type Kind string

const (
	Invalid      Kind = "invalid"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Internal     Kind = "internal"
)

// Error is an application error carrying a public message and optional
// structured details for the response body.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidErr(msg string, details map[string]any) *Error {
	return &Error{Kind: Invalid, Message: msg, Details: details}
}

func UnauthorizedErr(msg string) *Error {
	return &Error{Kind: Unauthorized, Message: msg}
}

func ForbiddenErr(msg string) *Error {
	return &Error{Kind: Forbidden, Message: msg}
}

func NotFoundErr(msg string) *Error {
	return &Error{Kind: NotFound, Message: msg}
}

func ConflictErr(msg string) *Error {
	return &Error{Kind: Conflict, Message: msg}
}

// Wrap marks err as internal. The message is never shown in production.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Internal, Message: msg, Err: err}
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusBadRequest
		case Unauthorized:
			return http.StatusUnauthorized
		case Forbidden:
			return http.StatusForbidden
		case NotFound:
			return http.StatusNotFound
		case Conflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return http.StatusInternalServerError
}
