package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// Initialize resets the session, installs a fresh token authenticator and
// waits for engine bring-up. It reports whether a stored login was restored.
func (o *Orchestrator) Initialize(ctx context.Context) (bool, error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.Initialize)
	defer cancel()

	o.mu.Lock()
	prev := o.sess.Call
	o.sess = SessionContext{Session: domain.Session{Auth: domain.AuthUnset}}
	o.mu.Unlock()
	if prev != nil {
		o.Media.Release(prev.ID)
	}

	a := o.Engine.NewTokenAuthenticator()
	done := make(chan bool, 1)
	o.Engine.Initialize(a, func(loggedIn bool) { done <- loggedIn })

	var loggedIn bool
	select {
	case <-ctx.Done():
		log.Error().Err(ctx.Err()).Str("module", "orch").Msg("initialize timed out")
		return false, fmt.Errorf("initialize: %w", ctx.Err())
	case loggedIn = <-done:
	}

	o.mu.Lock()
	o.sess.Session.LoggedIn = loggedIn
	switch {
	case loggedIn:
		o.sess.Session.Auth = domain.AuthAuthenticated
	case a != nil:
		o.sess.Session.Auth = domain.AuthUnauthenticated
	}
	o.mu.Unlock()

	log.Info().Str("module", "orch").Bool("logged_in", loggedIn).Msg("engine initialized")
	if loggedIn {
		o.publishLogin(true)
		o.armIncoming()
	}
	return loggedIn, nil
}

// Authenticate logs in with token. When already logged in it re-announces
// the login without touching the engine.
func (o *Orchestrator) Authenticate(ctx context.Context, token string) (bool, error) {
	o.mu.Lock()
	if o.sess.Session.LoggedIn {
		o.mu.Unlock()
		log.Debug().Str("module", "orch").Msg("already logged in")
		o.publishLogin(true)
		o.armIncoming()
		return true, nil
	}
	o.mu.Unlock()

	a := o.Engine.Authenticator()
	if a == nil {
		log.Error().Str("module", "orch").Msg("no authenticator installed")
		return false, ErrAuthenticatorUnavailable
	}

	ctx, cancel := withTimeout(ctx, o.timeouts.Authenticate)
	defer cancel()

	o.setAuth(domain.AuthAuthenticating)
	done := make(chan core.AuthResult, 1)
	a.AuthorizeWith(token, func(res core.AuthResult) { done <- res })

	var res core.AuthResult
	select {
	case <-ctx.Done():
		o.setAuth(domain.AuthUnauthenticated)
		log.Error().Err(ctx.Err()).Str("module", "orch").Msg("authenticate timed out")
		return false, fmt.Errorf("authenticate: %w", ctx.Err())
	case res = <-done:
	}

	o.mu.Lock()
	o.sess.Session.LoggedIn = res.OK
	if res.OK {
		o.sess.Session.Auth = domain.AuthAuthenticated
	} else {
		o.sess.Session.Auth = domain.AuthFailed
	}
	o.mu.Unlock()

	o.publishLogin(res.OK)
	if !res.OK {
		log.Warn().Str("module", "orch").Str("reason", res.Reason).Msg("authentication failed")
		return false, &AuthenticationFailedError{Reason: res.Reason}
	}
	log.Info().Str("module", "orch").Msg("authenticated")
	o.armIncoming()
	return true, nil
}

func (o *Orchestrator) setAuth(s domain.AuthState) {
	o.mu.Lock()
	o.sess.Session.Auth = s
	o.mu.Unlock()
}

// armIncoming (re)installs the incoming-call listener. Safe to repeat.
func (o *Orchestrator) armIncoming() {
	o.Engine.OnIncoming(func(c core.EngineCall) {
		o.post(engineEvent{kind: evIncoming, callID: domain.CallID(c.ID()), call: c})
	})
}

// AnswerCall answers the pending incoming call with audio and video.
func (o *Orchestrator) AnswerCall(ctx context.Context) (bool, error) {
	o.mu.Lock()
	if o.sess.answering {
		o.mu.Unlock()
		return false, ErrAnswerInProgress
	}
	c := o.sess.Call
	if c == nil || c.State != domain.CallIncoming {
		o.mu.Unlock()
		return false, ErrNoActiveCall
	}
	id, handle := c.ID, o.sess.handle
	c.State = domain.CallConnecting
	o.sess.answering = true
	o.mu.Unlock()

	ok := false
	defer func() {
		o.mu.Lock()
		o.sess.answering = false
		if !ok && o.sess.Call != nil && o.sess.Call.ID == id && o.sess.Call.State == domain.CallConnecting {
			o.sess.Call.State = domain.CallIncoming
		}
		o.mu.Unlock()
	}()

	ctx, cancel := withTimeout(ctx, o.timeouts.Answer)
	defer cancel()
	l := log.With().Str("module", "orch").Str("call_id", string(id)).Logger()

	for _, kind := range []domain.MediaKind{domain.MediaAudio, domain.MediaVideo} {
		granted, err := o.requestPermission(ctx, kind)
		if err != nil {
			l.Error().Err(err).Str("kind", string(kind)).Msg("permission request failed")
			return false, fmt.Errorf("request %s permission: %w", kind, err)
		}
		if !granted {
			l.Warn().Str("kind", string(kind)).Msg("permission denied")
			return false, &PermissionDeniedError{Kind: kind}
		}
	}

	// surfaces go in first so the first media frames land somewhere visible
	if err := o.Media.Bind(id); err != nil {
		l.Warn().Err(err).Msg("bind before answer")
	}

	done := make(chan error, 1)
	handle.Answer(core.AudioVideoOption(), func(err error) { done <- err })
	select {
	case <-ctx.Done():
		l.Error().Err(ctx.Err()).Msg("answer timed out")
		return false, fmt.Errorf("answer call: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			l.Error().Err(err).Msg("engine rejected answer")
			return false, &AnswerFailedError{Reason: err.Error()}
		}
	}

	o.Engine.ApplyPhoneSettings(o.phone)
	handle.SetCallbacks(o.callbacksFor(id))

	ack := make(chan struct{})
	o.post(engineEvent{kind: evAnswered, callID: id, ack: ack})
	select {
	case <-ack:
	case <-o.stopped:
		l.Error().Msg("event loop stopped before answer was applied")
		return false, ErrStopped
	case <-ctx.Done():
		return false, fmt.Errorf("answer call: %w", ctx.Err())
	}
	ok = true
	l.Info().Msg("call answered")
	return true, nil
}

func (o *Orchestrator) requestPermission(ctx context.Context, kind domain.MediaKind) (bool, error) {
	if o.Gate == nil {
		return true, nil
	}
	return o.Gate.Request(ctx, kind)
}
