// Package domain contains entities without logic, just meta-data
package domain

import "fmt"

// AuthState tracks the authenticator lifecycle of a session.
type AuthState int

const (
	AuthUnset AuthState = iota
	AuthUnauthenticated
	AuthAuthenticating
	AuthAuthenticated
	AuthFailed
)

func (s AuthState) String() string {
	switch s {
	case AuthUnset:
		return "Unset"
	case AuthUnauthenticated:
		return "Unauthenticated"
	case AuthAuthenticating:
		return "Authenticating"
	case AuthAuthenticated:
		return "Authenticated"
	case AuthFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Session is the per-process view of the engine login.
type Session struct {
	LoggedIn bool      `json:"isLoggedIn"`
	Auth     AuthState `json:"-"`
}

// MediaKind names a capture device class that needs a permission grant.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)
