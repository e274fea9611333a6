// Package auth implements the simulated login and registration flow:
// non-empty checks, a fixed delay, then navigation to the dashboard.
// No credential is verified and nothing is stored.
package auth

import (
	"context"
	"errors"
	"time"

	"wallet/internal/log"
)

// HomePath is where a successful login or registration navigates.
const HomePath = "/home"

const (
	MsgMissingFields    = "Please fill in all fields"
	MsgPasswordMismatch = "Passwords do not match"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("auth validation failed")

// ValidationError carries the single message shown under an auth form.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type LoginForm struct {
	Username string
	Password string
}

func (f LoginForm) Validate() error {
	if f.Username == "" || f.Password == "" {
		return &ValidationError{Message: MsgMissingFields}
	}
	return nil
}

type RegisterForm struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

func (f RegisterForm) Validate() error {
	if f.Username == "" || f.Email == "" || f.Password == "" || f.ConfirmPassword == "" {
		return &ValidationError{Message: MsgMissingFields}
	}
	if f.Password != f.ConfirmPassword {
		return &ValidationError{Message: MsgPasswordMismatch}
	}
	return nil
}

// Navigator waits the configured delay before yielding the destination.
// The wait is bound to the caller's context: if it is cancelled first,
// no destination is produced.
type Navigator struct {
	delay  time.Duration
	logger *log.Logger
}

func NewNavigator(delay time.Duration, logger *log.Logger) *Navigator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Navigator{delay: delay, logger: logger.WithComponent(log.ComponentAuth)}
}

// Login validates the form and, after the delay, returns HomePath.
func (n *Navigator) Login(ctx context.Context, f LoginForm) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	return n.navigate(ctx, "login")
}

// Register validates the form and, after the delay, returns HomePath.
func (n *Navigator) Register(ctx context.Context, f RegisterForm) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	return n.navigate(ctx, "register")
}

func (n *Navigator) navigate(ctx context.Context, flow string) (string, error) {
	if n.delay <= 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return HomePath, nil
	}
	timer := time.NewTimer(n.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		n.logger.DebugContext(ctx, "Pending navigation dropped", log.FieldOperation, flow, log.FieldError, ctx.Err().Error())
		return "", ctx.Err()
	case <-timer.C:
		n.logger.DebugContext(ctx, "Simulated authentication complete", log.FieldOperation, flow)
		return HomePath, nil
	}
}
