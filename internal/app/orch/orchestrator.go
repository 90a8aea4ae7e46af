package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/app/bridge"
	"github.com/dkeye/callbridge/internal/app/media"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

const defaultQueueSize = 64

// Timeouts bounds each command. Zero means only the caller's context applies.
type Timeouts struct {
	Initialize   time.Duration `mapstructure:"initialize"`
	Authenticate time.Duration `mapstructure:"authenticate"`
	Answer       time.Duration `mapstructure:"answer"`
}

type Options struct {
	Engine    core.Engine
	Bridge    *bridge.Bridge
	Media     *media.Binder
	Gate      core.PermissionGate
	Policy    app.Policy
	Phone     core.PhoneSettings
	Timeouts  Timeouts
	QueueSize int
}

// SessionContext is the single session handle and its current call slot.
type SessionContext struct {
	Session domain.Session
	Call    *domain.Call

	handle    core.EngineCall
	answering bool
}

// Orchestrator owns call lifecycle state. Engine callbacks are queued and
// applied by Run one at a time; commands may be called from any goroutine.
type Orchestrator struct {
	Engine core.Engine
	Bridge *bridge.Bridge
	Media  *media.Binder
	Gate   core.PermissionGate
	Policy app.Policy

	phone    core.PhoneSettings
	timeouts Timeouts

	mu   sync.Mutex
	sess SessionContext

	events  chan engineEvent
	stopped chan struct{}
	once    sync.Once
}

func New(opts Options) *Orchestrator {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	b := opts.Bridge
	if b == nil {
		b = bridge.New()
	}
	m := opts.Media
	if m == nil {
		m = media.NewBinder(nil)
	}
	p := opts.Policy
	if p == nil {
		p = app.SimplePolicy{}
	}
	return &Orchestrator{
		Engine:   opts.Engine,
		Bridge:   b,
		Media:    m,
		Gate:     opts.Gate,
		Policy:   p,
		phone:    opts.Phone,
		timeouts: opts.Timeouts,
		events:   make(chan engineEvent, size),
		stopped:  make(chan struct{}),
	}
}

// Run applies queued engine events until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().Str("module", "orch").Msg("event loop started")
	defer o.once.Do(func() { close(o.stopped) })
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("event loop stopped")
			return ctx.Err()
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

// post hands an engine callback to the event loop. It may block while the
// queue is full but never after Run has returned.
func (o *Orchestrator) post(ev engineEvent) {
	select {
	case <-o.stopped:
		log.Warn().Str("module", "orch").Str("event", ev.kind.String()).Str("call_id", string(ev.callID)).Msg("event loop stopped, event dropped")
		return
	default:
	}
	select {
	case o.events <- ev:
	case <-o.stopped:
		log.Warn().Str("module", "orch").Str("event", ev.kind.String()).Str("call_id", string(ev.callID)).Msg("event loop stopped, event dropped")
	}
}

type emission struct {
	ch      bridge.Channel
	payload any
}

func (o *Orchestrator) publish(out []emission) {
	for _, e := range out {
		o.Bridge.Publish(e.ch, e.payload)
	}
}

func (o *Orchestrator) publishLogin(loggedIn bool) {
	o.Bridge.Publish(bridge.Login, bridge.LoginPayload{IsLoggedIn: loggedIn})
}

// Snapshot returns copies of the session and the current call, if any.
func (o *Orchestrator) Snapshot() (domain.Session, *domain.Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.Session, o.sess.Call.Clone()
}

// SetValue republishes a host value on the generic channel.
func (o *Orchestrator) SetValue(v string) {
	o.Bridge.Publish(bridge.ValueChange, bridge.ValuePayload{Value: v})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
