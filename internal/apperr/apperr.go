// Package apperr holds the error taxonomy shared by every service. Each type
// knows the banner text shown to the user; handlers convert with Banner and
// Status at the call site nearest the user action.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type AuthCode string

const (
	InvalidEmail  AuthCode = "invalid-email"
	WeakPassword  AuthCode = "weak-password"
	EmailInUse    AuthCode = "email-in-use"
	WrongPassword AuthCode = "wrong-password"
	NoSession     AuthCode = "no-session"
)

type AuthError struct {
	Code AuthCode
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s", e.Code)
}

func (e *AuthError) Banner() string {
	switch e.Code {
	case InvalidEmail:
		return "Please enter a valid email address."
	case WeakPassword:
		return "Password should be at least 6 characters long."
	case EmailInUse:
		return "This email is already registered. Please sign in instead."
	case WrongPassword:
		return "Invalid email or password."
	default:
		return "Please sign in to continue."
	}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Banner() string {
	switch e.Resource {
	case "community":
		return "Community not found"
	case "challenge":
		return "Challenge not found"
	case "portfolio":
		return "Portfolio not found"
	}
	return "Not found"
}

// ValidationError is raised before any store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Banner() string {
	return e.Reason
}

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Banner() string {
	return fmt.Sprintf("Failed to %s. Please try again.", e.Op)
}

type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Action
}

func (e *PermissionError) Banner() string {
	return e.Action
}

func Auth(code AuthCode) error {
	return &AuthError{Code: code}
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Store wraps err unless it already belongs to the taxonomy.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func Permission(action string) error {
	return &PermissionError{Action: action}
}

// Classified reports whether err already carries one of the taxonomy types.
func Classified(err error) bool {
	var (
		ae *AuthError
		ne *NotFoundError
		ve *ValidationError
		se *StoreError
		pe *PermissionError
	)
	return errors.As(err, &ae) || errors.As(err, &ne) || errors.As(err, &ve) ||
		errors.As(err, &se) || errors.As(err, &pe)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuth(err error, code AuthCode) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == code
}

type banner interface {
	Banner() string
}

// Banner returns the human-readable text for err.
func Banner(err error) string {
	var b banner
	if errors.As(err, &b) {
		return b.Banner()
	}
	return "Something went wrong. Please try again."
}

func Status(err error) int {
	var (
		ae *AuthError
		ne *NotFoundError
		ve *ValidationError
		pe *PermissionError
	)
	switch {
	case errors.As(err, &ae):
		if ae.Code == EmailInUse {
			return http.StatusConflict
		}
		if ae.Code == InvalidEmail || ae.Code == WeakPassword {
			return http.StatusBadRequest
		}
		return http.StatusUnauthorized
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &pe):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
