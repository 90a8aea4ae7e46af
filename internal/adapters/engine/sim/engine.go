// Package sim is an in-process calling engine. It honors the engine callback
// contract and lets tests and debug builds drive calls by hand.
package sim

import (
	"errors"
	"sync"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotListening = errors.New("no incoming listener armed")
	ErrUnknownCall  = errors.New("unknown call")
)

// Config drives the engine's canned answers.
type Config struct {
	// StoredLogin is reported by Initialize when an authenticator is installed.
	StoredLogin bool `mapstructure:"stored_login"`

	// Tokens accepted by the token authenticator. Empty accepts any non-empty token.
	Tokens []string `mapstructure:"tokens"`

	// StallInit keeps Initialize from ever completing.
	StallInit bool `mapstructure:"stall_init"`
}

type Engine struct {
	cfg Config

	mu         sync.Mutex
	auth       core.Authenticator
	onIncoming func(core.EngineCall)
	calls      map[string]*Call
	last       *Call
	phone      core.PhoneSettings
	phoneSets  int
	authorized int
	noAuth     bool
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, calls: make(map[string]*Call)}
}

// DisableAuthenticator makes NewTokenAuthenticator return nil, as an engine
// built without token auth would.
func (e *Engine) DisableAuthenticator() {
	e.mu.Lock()
	e.noAuth = true
	e.mu.Unlock()
}

func (e *Engine) NewTokenAuthenticator() core.Authenticator {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.noAuth {
		return nil
	}
	return &tokenAuthenticator{engine: e}
}

func (e *Engine) Initialize(a core.Authenticator, done func(loggedIn bool)) {
	e.mu.Lock()
	e.auth = a
	stored := e.cfg.StoredLogin && a != nil
	stall := e.cfg.StallInit
	e.mu.Unlock()

	log.Info().Str("module", "sim").Bool("stored_login", stored).Msg("engine bring-up")
	if stall {
		return
	}
	go done(stored)
}

func (e *Engine) Authenticator() core.Authenticator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auth
}

func (e *Engine) OnIncoming(fn func(core.EngineCall)) {
	e.mu.Lock()
	e.onIncoming = fn
	e.mu.Unlock()
}

func (e *Engine) ApplyPhoneSettings(ps core.PhoneSettings) {
	e.mu.Lock()
	e.phone = ps
	e.phoneSets++
	e.mu.Unlock()
	log.Debug().Str("module", "sim").Interface("settings", ps).Msg("phone settings applied")
}

// PhoneSettings returns the last applied settings and how often they were set.
func (e *Engine) PhoneSettings() (core.PhoneSettings, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phone, e.phoneSets
}

// AuthorizeCalls counts how many times a token reached the authenticator.
func (e *Engine) AuthorizeCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authorized
}

// Incoming rings a new call with the given participants.
func (e *Engine) Incoming(members []domain.Membership) (*Call, error) {
	c := newCall(uuid.NewString(), members)

	e.mu.Lock()
	fn := e.onIncoming
	if fn != nil {
		e.calls[c.id] = c
		e.last = c
	}
	e.mu.Unlock()

	if fn == nil {
		return nil, ErrNotListening
	}
	log.Info().Str("module", "sim").Str("call_id", c.id).Msg("incoming call")
	fn(c)
	return c, nil
}

func (e *Engine) Call(id string) (*Call, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.calls[id]
	if !ok {
		return nil, ErrUnknownCall
	}
	return c, nil
}

// Last returns the most recent incoming call.
func (e *Engine) Last() (*Call, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil, ErrUnknownCall
	}
	return e.last, nil
}

func (e *Engine) accept(token string) bool {
	if token == "" {
		return false
	}
	if len(e.cfg.Tokens) == 0 {
		return true
	}
	for _, t := range e.cfg.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

type tokenAuthenticator struct {
	engine *Engine
}

func (a *tokenAuthenticator) AuthorizeWith(token string, done func(core.AuthResult)) {
	e := a.engine
	e.mu.Lock()
	e.authorized++
	e.mu.Unlock()

	ok := e.accept(token)
	res := core.AuthResult{OK: ok}
	if !ok {
		res.Reason = "invalid-token"
	}
	go done(res)
}
