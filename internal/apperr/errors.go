// Package apperr defines the error taxonomy shared by the store, session,
// workflow and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is checks. The typed errors below match them by kind.
var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")

	ErrMissingField = errors.New("missing required field")
	ErrEmptyDraft   = errors.New("draft is empty")
	ErrInvalidValue = errors.New("invalid value")

	ErrUnknownProject = errors.New("project not found")
	ErrUnknownUser    = errors.New("user not found")
	ErrUnknownRecord  = errors.New("record not found")

	ErrGenerationTimeout = errors.New("generation timed out")
	ErrUpstreamFailure   = errors.New("generation upstream failure")

	ErrConflict  = errors.New("conflicting update")
	ErrForbidden = errors.New("forbidden")
)

type AuthKind string

const (
	InvalidCredentials AuthKind = "invalid_credentials"
	DuplicateEmail     AuthKind = "duplicate_email"
	SessionExpired     AuthKind = "session_expired"
)

// AuthError reports a failed sign-in, sign-up or session lookup.
type AuthError struct {
	Kind  AuthKind
	Stage string
	Email string
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case InvalidCredentials:
		return ErrInvalidCredentials.Error()
	case DuplicateEmail:
		return fmt.Sprintf("%s: %s", ErrDuplicateEmail, e.Email)
	default:
		return ErrSessionExpired.Error()
	}
}

func (e *AuthError) Is(target error) bool {
	switch e.Kind {
	case InvalidCredentials:
		return target == ErrInvalidCredentials
	case DuplicateEmail:
		return target == ErrDuplicateEmail
	case SessionExpired:
		return target == ErrSessionExpired
	}
	return false
}

type ValidationKind string

const (
	MissingField ValidationKind = "missing_field"
	EmptyDraft   ValidationKind = "empty_draft"
	InvalidValue ValidationKind = "invalid_value"
)

// ValidationError names the stage and field that failed validation.
type ValidationError struct {
	Kind  ValidationKind
	Stage string
	Field string
	Value string
}

func Missing(stage, field string) *ValidationError {
	return &ValidationError{Kind: MissingField, Stage: stage, Field: field}
}

func Invalid(stage, field, value string) *ValidationError {
	return &ValidationError{Kind: InvalidValue, Stage: stage, Field: field, Value: value}
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case EmptyDraft:
		return fmt.Sprintf("%s: %s", e.Stage, ErrEmptyDraft)
	case InvalidValue:
		return fmt.Sprintf("%s: invalid %s %q", e.Stage, e.Field, e.Value)
	default:
		return fmt.Sprintf("%s: %s is required", e.Stage, e.Field)
	}
}

func (e *ValidationError) Is(target error) bool {
	switch e.Kind {
	case MissingField:
		return target == ErrMissingField
	case EmptyDraft:
		return target == ErrEmptyDraft
	case InvalidValue:
		return target == ErrInvalidValue
	}
	return false
}

type NotFoundKind string

const (
	UnknownProject NotFoundKind = "unknown_project"
	UnknownUser    NotFoundKind = "unknown_user"
	UnknownRecord  NotFoundKind = "unknown_record"
)

type NotFoundError struct {
	Kind  NotFoundKind
	Stage string
	ID    string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case UnknownProject:
		return fmt.Sprintf("%s: %s", ErrUnknownProject, e.ID)
	case UnknownUser:
		return fmt.Sprintf("%s: %s", ErrUnknownUser, e.ID)
	default:
		return fmt.Sprintf("%s: %s", ErrUnknownRecord, e.ID)
	}
}

func (e *NotFoundError) Is(target error) bool {
	switch e.Kind {
	case UnknownProject:
		return target == ErrUnknownProject
	case UnknownUser:
		return target == ErrUnknownUser
	case UnknownRecord:
		return target == ErrUnknownRecord
	}
	return false
}

type GenerationKind string

const (
	Timeout         GenerationKind = "timeout"
	UpstreamFailure GenerationKind = "upstream_failure"
)

// GenerationError wraps a failed insight or draft generation.
type GenerationError struct {
	Kind  GenerationKind
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	msg := ErrUpstreamFailure.Error()
	if e.Kind == Timeout {
		msg = ErrGenerationTimeout.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, msg)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool {
	switch e.Kind {
	case Timeout:
		return target == ErrGenerationTimeout
	case UpstreamFailure:
		return target == ErrUpstreamFailure
	}
	return false
}

// ConflictError is returned when a compare-and-swap loses or a transition
// is already in flight for the same record.
type ConflictError struct {
	Stage string
	ID    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s on %s", e.Stage, ErrConflict, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type ForbiddenError struct {
	Capability string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s: %s", ErrForbidden, e.Capability)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// Retryable reports whether err may be retried automatically. Only
// generation failures qualify.
func Retryable(err error) bool {
	var gen *GenerationError
	return errors.As(err, &gen)
}

// IsValidation reports whether err belongs to the validation class, which is
// resolved by the caller and never logged as a system failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// HTTPStatus maps the taxonomy onto HTTP status codes.
func HTTPStatus(err error) int {
	var (
		authErr *AuthError
		valErr  *ValidationError
		nfErr   *NotFoundError
		genErr  *GenerationError
		confErr *ConflictError
		forbErr *ForbiddenError
	)
	switch {
	case errors.As(err, &authErr):
		if authErr.Kind == DuplicateEmail {
			return http.StatusConflict
		}
		return http.StatusUnauthorized
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.As(err, &genErr):
		if genErr.Kind == Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &confErr):
		return http.StatusConflict
	case errors.As(err, &forbErr):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Fields returns the stage and field an error points at, for error
// envelopes. Either may be empty.
func Fields(err error) (stage, field string) {
	var (
		valErr  *ValidationError
		genErr  *GenerationError
		confErr *ConflictError
		nfErr   *NotFoundError
		authErr *AuthError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Stage, valErr.Field
	case errors.As(err, &genErr):
		return genErr.Stage, ""
	case errors.As(err, &confErr):
		return confErr.Stage, ""
	case errors.As(err, &nfErr):
		return nfErr.Stage, ""
	case errors.As(err, &authErr):
		return authErr.Stage, ""
	}
	return "", ""
}

// WithStage names stage on a NotFoundError or AuthError in err's chain
// that has none yet, and returns err. Repositories do not know which
// operation called them; the operation fills the stage in.
func WithStage(err error, stage string) error {
	var nfErr *NotFoundError
	if errors.As(err, &nfErr) && nfErr.Stage == "" {
		nfErr.Stage = stage
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Stage == "" {
		authErr.Stage = stage
	}
	return err
}
