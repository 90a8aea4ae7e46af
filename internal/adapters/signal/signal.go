package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/callbridge/internal/adapters/rtc"
	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/app/bridge"
	"github.com/dkeye/callbridge/internal/app/orch"
	"github.com/dkeye/callbridge/internal/app/placement"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	SendBuffer int
	ReadLimit  int64
	PingPeriod time.Duration
	ICE        webrtc.Configuration
	// Surfaces are offered to every viewer that negotiates media.
	Surfaces []*rtc.TrackSurface
}

// SignalWSController serves the host event stream: bridge events go out,
// placement gestures and viewer signalling come in.
type SignalWSController struct {
	Orch      *orch.Orchestrator
	Placement *placement.Controller
	Policy    app.Policy

	opts Options

	mu      sync.Mutex
	viewers map[string]*rtc.ViewerConnection
}

func NewSignalWSController(o *orch.Orchestrator, pl *placement.Controller, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	p := o.Policy
	if p == nil {
		p = app.SimplePolicy{}
	}
	return &SignalWSController{
		Orch:      o,
		Placement: pl,
		Policy:    p,
		opts:      opts,
		viewers:   make(map[string]*rtc.ViewerConnection),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn, buf int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buf)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	id := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("client", id).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}
	conn := newConn(ws, ctl.opts.SendBuffer)

	subs, err := ctl.subscribe(id, conn)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("subscribe")
		conn.Close()
		return
	}
	ctl.sendState(conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		ctl.readPump(ctx, id, conn)
		cancel()
		for _, s := range subs {
			s.Remove()
		}
		ctl.dropViewer(id)
	}()
}

// subscribe forwards every bridge channel to conn.
func (ctl *SignalWSController) subscribe(id string, conn core.SignalConnection) ([]*bridge.Subscription, error) {
	subs := make([]*bridge.Subscription, 0, len(bridge.Channels))
	for _, ch := range bridge.Channels {
		s, err := ctl.Orch.Bridge.Subscribe(ch, func(ev bridge.Event) { ctl.forward(id, conn, ev) })
		if err != nil {
			for _, done := range subs {
				done.Remove()
			}
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (ctl *SignalWSController) forward(id string, conn core.SignalConnection, ev bridge.Event) {
	f, err := EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", string(ev.Channel)).Msg("encode event")
		return
	}
	err = conn.TrySend(f)
	if !errors.Is(err, ErrBackpressure) {
		return
	}
	switch ctl.Policy.OnBackPressure(string(ev.Channel)) {
	case app.CloseConn:
		log.Warn().Str("module", "signal").Str("client", id).Str("event", string(ev.Channel)).Msg("slow host, closing")
		conn.Close()
	case app.DropFrame, app.NoAction:
		log.Warn().Str("module", "signal").Str("client", id).Str("event", string(ev.Channel)).Msg("slow host, event dropped")
	}
}

func (ctl *SignalWSController) sendState(conn *WsSignalConn) {
	sess, call := ctl.Orch.Snapshot()
	resp := struct {
		Type      string          `json:"type"`
		Session   any             `json:"session"`
		Call      any             `json:"call"`
		Visible   bool            `json:"visible"`
		Placement placement.State `json:"placement"`
	}{
		Type:      "state",
		Session:   sess,
		Call:      call,
		Visible:   ctl.Orch.ViewVisible(),
		Placement: ctl.Placement.State(),
	}
	ctl.sendJSON(conn, resp)
}
