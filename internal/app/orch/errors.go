package orch

import (
	"errors"

	"github.com/dkeye/callbridge/internal/domain"
)

var (
	ErrAuthenticatorUnavailable = errors.New("authenticator unavailable")
	ErrAuthenticationFailed     = errors.New("authentication failed")
	ErrNoActiveCall             = errors.New("no active call")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrAnswerFailed             = errors.New("answer failed")
	ErrAnswerInProgress         = errors.New("answer already in progress")
	ErrStopped                  = errors.New("orchestrator stopped")
)

// AuthenticationFailedError carries the engine's reason code.
type AuthenticationFailedError struct {
	Reason string
}

func (e *AuthenticationFailedError) Error() string {
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationFailedError) Unwrap() error { return ErrAuthenticationFailed }

type PermissionDeniedError struct {
	Kind domain.MediaKind
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + string(e.Kind)
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

type AnswerFailedError struct {
	Reason string
}

func (e *AnswerFailedError) Error() string {
	return "answer failed: " + e.Reason
}

func (e *AnswerFailedError) Unwrap() error { return ErrAnswerFailed }
