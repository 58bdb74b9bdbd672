// Package apperrors defines the failure taxonomy shared by connectors, scorers
// and the orchestrator. Every error keeps a stack trace and the context needed
// to act on it from logs: user, provider and query fingerprint.
package apperrors

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	TypeTransient     ErrorType = "TRANSIENT"
	TypeRateLimited   ErrorType = "RATE_LIMITED"
	TypeAuth          ErrorType = "AUTH"
	TypeFatal         ErrorType = "FATAL"
	TypeNormalization ErrorType = "NORMALIZATION"
	TypeModelScoring  ErrorType = "MODEL_SCORING"
	TypePersistence   ErrorType = "PERSISTENCE"
	TypeInvalidInput  ErrorType = "INVALID_INPUT"
	TypeInternal      ErrorType = "INTERNAL"
)

type DomainError struct {
	Type        ErrorType
	Message     string
	Err         error
	Stack       []byte
	UserID      string
	Provider    string
	Fingerprint string
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	if e.UserID != "" {
		ctx = append(ctx, "user="+e.UserID)
	}
	if e.Provider != "" {
		ctx = append(ctx, "provider="+e.Provider)
	}
	if e.Fingerprint != "" {
		ctx = append(ctx, "fingerprint="+e.Fingerprint)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(ctx, " "))
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

// WithUser returns a copy of the error annotated with the user id.
func (e *DomainError) WithUser(id string) *DomainError {
	c := *e
	c.UserID = id
	return &c
}

// WithProvider returns a copy of the error annotated with the provider name.
func (e *DomainError) WithProvider(name string) *DomainError {
	c := *e
	c.Provider = name
	return &c
}

// WithFingerprint returns a copy of the error annotated with the query fingerprint.
func (e *DomainError) WithFingerprint(fp string) *DomainError {
	c := *e
	c.Fingerprint = fp
	return &c
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func Transient(message string, err error) *DomainError {
	return New(TypeTransient, message, err)
}

func RateLimited(message string, err error) *DomainError {
	return New(TypeRateLimited, message, err)
}

func Auth(message string, err error) *DomainError {
	return New(TypeAuth, message, err)
}

func Fatal(message string, err error) *DomainError {
	return New(TypeFatal, message, err)
}

func Normalization(message string, err error) *DomainError {
	return New(TypeNormalization, message, err)
}

func ModelScoring(message string, err error) *DomainError {
	return New(TypeModelScoring, message, err)
}

func Persistence(message string, err error) *DomainError {
	return New(TypePersistence, message, err)
}

func InvalidInput(message string, err error) *DomainError {
	return New(TypeInvalidInput, message, err)
}

func Internal(message string, err error) *DomainError {
	return New(TypeInternal, message, err)
}

// TypeOf returns the type of the outermost DomainError in the chain, or
// TypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return TypeInternal
}

// Is reports whether any DomainError in the chain has the given type.
func Is(err error, t ErrorType) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == t {
			return true
		}
		err = de.Err
	}
	return false
}

// Retryable reports whether the error is worth another attempt.
func Retryable(err error) bool {
	return Is(err, TypeTransient)
}
