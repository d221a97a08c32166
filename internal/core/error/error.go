package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// StorageErrorMessage describes local session store failures.
	StorageErrorMessage = "session storage failed"
	// PlannerErrorMessage describes failures talking to the external planner.
	PlannerErrorMessage = "external planner unavailable"
	// PlannerTimeoutMessage is used when the planner call exceeded its deadline.
	PlannerTimeoutMessage = "external planner timed out"
	// BusyMessage is returned when another turn of the conversation is in flight.
	BusyMessage = "conversation is busy, retry shortly"
	// NotFoundMessage is returned for unknown conversations.
	NotFoundMessage = "conversation not found"
)

var (
	ErrSessionNotFound    = errors.New("conversation not found")
	ErrConversationBusy   = errors.New("conversation busy")
	ErrPlannerUnavailable = errors.New("external planner unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// NotFound marks a conversation id that has no session.
func NotFound(conversationID string) error {
	return New(fmt.Errorf("%w: %s", ErrSessionNotFound, conversationID), http.StatusNotFound, NotFoundMessage)
}

// Busy marks a conversation whose lock could not be acquired in time.
func Busy(conversationID string) error {
	return New(fmt.Errorf("%w: %s", ErrConversationBusy, conversationID), http.StatusConflict, BusyMessage)
}

// InvalidInput marks a malformed request from the caller.
func InvalidInput(msg string) error {
	return New(fmt.Errorf("%w: %s", ErrInvalidInput, msg), http.StatusBadRequest, msg)
}

// WrapPlanner marks an error as the planner being unreachable. It is the only
// failure of a correction loop that propagates to the caller.
func WrapPlanner(err error) error {
	if err == nil {
		return nil
	}
	var app *AppError
	if errors.As(err, &app) && errors.Is(err, ErrPlannerUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(fmt.Errorf("%w: %w", ErrPlannerUnavailable, err), http.StatusGatewayTimeout, PlannerTimeoutMessage)
	}
	return New(fmt.Errorf("%w: %w", ErrPlannerUnavailable, err), http.StatusBadGateway, PlannerErrorMessage)
}

// WrapStorage wraps a local (bbolt) session store error.
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusInternalServerError, StorageErrorMessage)
}

// StatusOf returns the HTTP status carried by err, 500 when there is none.
func StatusOf(err error) int {
	var app *AppError
	if errors.As(err, &app) && app.Status != 0 {
		return app.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message carried by err.
func MessageOf(err error) string {
	var app *AppError
	if errors.As(err, &app) && app.Message != "" {
		return app.Message
	}
	return SystemErrorMessage
}
