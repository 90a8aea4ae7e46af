package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/callbridge/internal/app/bridge"
	"github.com/dkeye/callbridge/internal/app/orch"
	"github.com/dkeye/callbridge/internal/app/placement"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type fakeConn struct {
	mu     sync.Mutex
	err    error
	frames []core.Frame
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func newController() *SignalWSController {
	o := orch.New(orch.Options{})
	return NewSignalWSController(o, placement.NewController(placement.DefaultConfig()), Options{})
}

func TestEncodeEvent(t *testing.T) {
	f, err := EncodeEvent(bridge.Event{
		Channel: bridge.CallStatusChange,
		Seq:     3,
		Payload: bridge.StatusPayload{Status: "connected"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"event":"call-status-change","seq":3,"payload":{"status":"connected"}}`
	if string(f) != want {
		t.Errorf("frame = %s, want %s", f, want)
	}
}

func TestForwardBackpressure(t *testing.T) {
	ctl := newController()

	slow := &fakeConn{err: ErrBackpressure}
	ctl.forward("c1", slow, bridge.Event{Channel: bridge.ValueChange, Payload: bridge.ValuePayload{Value: "x"}})
	if slow.closed {
		t.Fatal("value change backpressure closed the connection")
	}
	ctl.forward("c1", slow, bridge.Event{Channel: bridge.CallStatusChange, Payload: bridge.StatusPayload{Status: "ringing"}})
	if !slow.closed {
		t.Fatal("status backpressure left the connection open")
	}
}

func TestHandleSignalPlacement(t *testing.T) {
	ctl := newController()
	conn := &fakeConn{}

	ctl.handleSignal("c1", conn, []byte(`{"type":"resize","width":700,"height":600}`))
	ctl.handleSignal("c1", conn, []byte(`{"type":"drag","x":550,"y":500}`))
	ctl.handleSignal("c1", conn, []byte(`{"type":"release"}`))

	if len(conn.frames) != 3 {
		t.Fatalf("got %d replies, want 3", len(conn.frames))
	}
	var resp placementResp
	if err := json.Unmarshal(conn.frames[2], &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "placement" || len(resp.Animations) == 0 {
		t.Fatalf("release reply = %+v", resp)
	}
	if resp.State.Center.X != 640 || resp.State.Center.Y != 150 {
		t.Errorf("center after release = %+v, want (640, 150)", resp.State.Center)
	}
}

func TestHandleSignalErrors(t *testing.T) {
	ctl := newController()
	conn := &fakeConn{}

	ctl.handleSignal("c1", conn, []byte(`not json`))
	ctl.handleSignal("c1", conn, []byte(`{"type":"teleport"}`))
	ctl.handleSignal("c1", conn, []byte(`{"type":"resize","width":-1}`))
	ctl.handleSignal("c1", conn, []byte(`{"type":"offer"}`))

	want := []string{"bad_json", "unknown_type", "bad_payload", "bad_payload"}
	if len(conn.frames) != len(want) {
		t.Fatalf("got %d replies, want %d", len(conn.frames), len(want))
	}
	for i, w := range want {
		var resp struct{ Type, Error string }
		if err := json.Unmarshal(conn.frames[i], &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Type != "error" || resp.Error != w {
			t.Errorf("reply %d = %+v, want error %s", i, resp, w)
		}
	}
	if ctl.ViewerCount() != 0 {
		t.Error("viewer registered from a bad offer")
	}
}

func readJSON(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := ws.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestWebsocketStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctl := newController()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", "tok-1")
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	var state struct {
		Type    string `json:"type"`
		Visible bool   `json:"visible"`
	}
	readJSON(t, ws, &state)
	if state.Type != "state" || state.Visible {
		t.Fatalf("first frame = %+v", state)
	}

	ctl.Orch.SetValue("hello")
	var ev struct {
		Event   string              `json:"event"`
		Payload bridge.ValuePayload `json:"payload"`
	}
	readJSON(t, ws, &ev)
	if ev.Event != "generic-value-change" || ev.Payload.Value != "hello" {
		t.Fatalf("event frame = %+v", ev)
	}

	if err := ws.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	var pong struct{ Type string }
	readJSON(t, ws, &pong)
	if pong.Type != "pong" {
		t.Errorf("reply = %+v, want pong", pong)
	}

	ws.Close()
	deadline := time.After(2 * time.Second)
	for ctl.Orch.Bridge.SubscriberCount(bridge.ValueChange) != 0 {
		select {
		case <-deadline:
			t.Fatal("subscriptions not removed after disconnect")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
