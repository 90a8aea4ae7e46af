package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/pion/rtp"
)

func TestTokenAuthenticator(t *testing.T) {
	e := New(Config{Tokens: []string{"good"}})
	a := e.NewTokenAuthenticator()

	for token, want := range map[string]bool{"good": true, "bad": false, "": false} {
		done := make(chan core.AuthResult, 1)
		a.AuthorizeWith(token, func(r core.AuthResult) { done <- r })
		select {
		case r := <-done:
			if r.OK != want {
				t.Errorf("token %q: OK = %v, want %v", token, r.OK, want)
			}
			if !r.OK && r.Reason == "" {
				t.Errorf("token %q: empty failure reason", token)
			}
		case <-time.After(time.Second):
			t.Fatalf("token %q: no result", token)
		}
	}
	if n := e.AuthorizeCalls(); n != 3 {
		t.Errorf("AuthorizeCalls = %d, want 3", n)
	}
}

func TestInitializeReportsStoredLogin(t *testing.T) {
	e := New(Config{StoredLogin: true})
	done := make(chan bool, 1)
	e.Initialize(e.NewTokenAuthenticator(), func(ok bool) { done <- ok })
	if !<-done {
		t.Fatal("stored login not restored")
	}
	if e.Authenticator() == nil {
		t.Error("authenticator not installed")
	}
}

func TestIncomingNeedsListener(t *testing.T) {
	e := New(Config{})
	if _, err := e.Incoming(nil); !errors.Is(err, ErrNotListening) {
		t.Fatalf("err = %v, want ErrNotListening", err)
	}

	var got core.EngineCall
	e.OnIncoming(func(c core.EngineCall) { got = c })
	c, err := e.Incoming([]domain.Membership{{DisplayName: "Alice"}})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID() != c.ID() || c.ID() == "" {
		t.Fatalf("listener got %v, want call %s", got, c.ID())
	}
	if found, err := e.Call(c.ID()); err != nil || found != c {
		t.Errorf("Call(%s) = %v, %v", c.ID(), found, err)
	}
	if ms := got.Memberships(); len(ms) != 1 || ms[0].DisplayName != "Alice" {
		t.Errorf("memberships = %v", ms)
	}
}

func TestCallCallbacksFireInOrder(t *testing.T) {
	c := newCall("c1", nil)
	var seen []string
	c.SetCallbacks(core.CallCallbacks{
		OnRinging:           func() { seen = append(seen, "ringing") },
		OnConnected:         func() { seen = append(seen, "connected") },
		OnMembershipChanged: func(ch string) { seen = append(seen, "members:"+ch) },
		OnMediaChanged:      func(mc core.MediaChange) { seen = append(seen, "media:"+mc.Kind.String()) },
		OnDisconnected:      func(r string) { seen = append(seen, "disconnected:"+r) },
	})

	c.Ring()
	c.Connect()
	c.SetMemberships(nil, "left")
	c.ChangeMedia(core.SendingVideo, false)
	c.Info()
	c.Disconnect("bye")

	want := []string{"ringing", "connected", "members:left", "media:SendingVideo", "disconnected:bye"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestAnswerFailureIsOneShot(t *testing.T) {
	c := newCall("c1", nil)
	c.FailAnswer(errors.New("busy"))

	done := make(chan error, 1)
	c.Answer(core.AudioVideoOption(), func(err error) { done <- err })
	if err := <-done; err == nil || err.Error() != "busy" {
		t.Fatalf("first answer err = %v", err)
	}
	c.Answer(core.AudioVideoOption(), func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("second answer err = %v", err)
	}
	if ok, opt := c.Answered(); !ok || opt.CompositedLayout != "grid" {
		t.Errorf("Answered() = %v, %+v", ok, opt)
	}
	if f := c.MediaFlags(); !f.SendingVideo || !f.ReceivingAudio {
		t.Errorf("flags after answer = %+v", f)
	}
}

type countingSurface struct {
	mu   sync.Mutex
	pkts int
}

func (s *countingSurface) Name() string { return "count" }
func (s *countingSurface) SetVisible(bool) {}
func (s *countingSurface) Visible() bool { return true }
func (s *countingSurface) WriteRTP(*rtp.Packet) error {
	s.mu.Lock()
	s.pkts++
	s.mu.Unlock()
	return nil
}

func (s *countingSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pkts
}

func TestPumpWritesIntoBoundSurfaces(t *testing.T) {
	c := newCall("c1", nil)
	s := &countingSurface{}
	c.SetRenderSurfaces(nil, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Pump(ctx, time.Millisecond)

	deadline := time.After(2 * time.Second)
	for s.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("pump wrote %d packets", s.count())
		case <-time.After(2 * time.Millisecond):
		}
	}
}
