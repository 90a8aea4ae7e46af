package media

import (
	"sync"
	"testing"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/pion/rtp"
)

type surface struct {
	name string
	vis  bool
}

func (s *surface) Name() string { return s.name }
func (s *surface) SetVisible(v bool) { s.vis = v }
func (s *surface) Visible() bool { return s.vis }
func (s *surface) WriteRTP(*rtp.Packet) error { return nil }

type call struct {
	mu            sync.Mutex
	id            string
	flags         domain.MediaFlags
	local, remote core.RenderSurface
	binds         int
}

func (c *call) ID() string { return c.id }
func (c *call) Memberships() []domain.Membership { return nil }
func (c *call) MediaFlags() domain.MediaFlags { return c.flags }
func (c *call) SetCallbacks(core.CallCallbacks) {}
func (c *call) Answer(core.MediaOption, func(error)) {}
func (c *call) SetRenderSurfaces(l, r core.RenderSurface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local, c.remote = l, r
	c.binds++
}

func newView() (View, *surface, *surface) {
	l, r := &surface{name: "local"}, &surface{name: "remote"}
	return View{Name: "main", Local: l, Remote: r}, l, r
}

func TestBindWithoutView(t *testing.T) {
	b := NewBinder(nil)
	c := &call{id: "c1"}
	b.Register("c1", c)

	if err := b.Bind("c1"); err != ErrNoView {
		t.Fatalf("Bind() err = %v, want ErrNoView", err)
	}
	if c.binds != 0 {
		t.Errorf("engine saw %d binds, want 0", c.binds)
	}
	if err := b.Bind("nope"); err != ErrUnknownCall {
		t.Errorf("Bind(nope) err = %v, want ErrUnknownCall", err)
	}
}

func TestAttachViewMidCallBinds(t *testing.T) {
	b := NewBinder(nil)
	c := &call{id: "c1"}
	b.Register("c1", c)
	_ = b.Bind("c1")

	v, l, _ := newView()
	b.AttachView(v)
	if c.binds != 1 || c.local != l {
		t.Fatalf("binds = %d, local = %v", c.binds, c.local)
	}
	if !l.Visible() {
		t.Error("local preview hidden after bind")
	}
	if id, ok := b.Active(); !ok || id != "c1" {
		t.Errorf("Active() = %q, %v", id, ok)
	}
}

func TestMediaChangeVisibilityAndRebind(t *testing.T) {
	b := NewBinder(nil)
	v, l, r := newView()
	b.AttachView(v)
	c := &call{id: "c1", flags: domain.MediaFlags{ReceivingVideo: true, SendingVideo: true}}
	b.Register("c1", c)
	if err := b.Bind("c1"); err != nil {
		t.Fatal(err)
	}

	b.OnMediaChange("c1", core.MediaChange{Kind: core.RemoteSendingVideo, Active: false})
	if r.Visible() {
		t.Error("remote visible after remote video stopped")
	}
	if c.binds != 1 {
		t.Errorf("stop caused a rebind, binds = %d", c.binds)
	}

	b.OnMediaChange("c1", core.MediaChange{Kind: core.RemoteSendingVideo, Active: true})
	if !r.Visible() || c.binds != 2 {
		t.Errorf("resume: remote visible %v, binds %d; want true, 2", r.Visible(), c.binds)
	}

	b.OnMediaChange("c1", core.MediaChange{Kind: core.SendingVideo, Active: false})
	if l.Visible() {
		t.Error("local visible after camera stopped")
	}
	b.OnMediaChange("c1", core.MediaChange{Kind: core.SendingVideo, Active: true})
	if !l.Visible() || c.binds != 3 {
		t.Errorf("camera resume: local visible %v, binds %d", l.Visible(), c.binds)
	}

	// audio and unknown kinds touch nothing
	b.OnMediaChange("c1", core.MediaChange{Kind: core.SendingAudio, Active: true})
	b.OnMediaChange("c1", core.MediaChange{Kind: core.MediaChangeKind(42), Active: true})
	if c.binds != 3 {
		t.Errorf("binds = %d, want 3", c.binds)
	}
	if got := b.Registry().BindCount("c1"); got != 3 {
		t.Errorf("BindCount = %d, want 3", got)
	}
}

func TestFirstBindShowsRemote(t *testing.T) {
	b := NewBinder(nil)
	v, _, r := newView()
	b.AttachView(v)
	c := &call{id: "c1"}
	b.Register("c1", c)

	if err := b.Bind("c1"); err != nil {
		t.Fatal(err)
	}
	if !r.Visible() {
		t.Fatal("remote hidden after first bind")
	}

	// a rebind keeps whatever media changes decided
	b.OnMediaChange("c1", core.MediaChange{Kind: core.RemoteSendingVideo, Active: false})
	_ = b.Bind("c1")
	if r.Visible() {
		t.Error("rebind showed a stopped remote stream")
	}
}

func TestStartWithoutStopDoesNotRebind(t *testing.T) {
	b := NewBinder(nil)
	v, _, _ := newView()
	b.AttachView(v)
	c := &call{id: "c1"}
	b.Register("c1", c)
	_ = b.Bind("c1")

	// engine answered: flags now live
	b.Sync("c1", domain.MediaFlags{SendingVideo: true, ReceivingVideo: true})
	b.OnMediaChange("c1", core.MediaChange{Kind: core.RemoteSendingVideo, Active: true})
	if c.binds != 1 {
		t.Errorf("binds = %d, want 1", c.binds)
	}

	// Bind also picks flags up from the engine
	c2 := &call{id: "c2", flags: domain.MediaFlags{SendingVideo: true}}
	b.Register("c2", c2)
	_ = b.Bind("c2")
	b.OnMediaChange("c2", core.MediaChange{Kind: core.SendingVideo, Active: true})
	if c2.binds != 1 {
		t.Errorf("c2 binds = %d, want 1", c2.binds)
	}
}

func TestReleaseKeepsSurfaces(t *testing.T) {
	b := NewBinder(nil)
	v, l, _ := newView()
	b.AttachView(v)
	c := &call{id: "c1"}
	b.Register("c1", c)
	_ = b.Bind("c1")

	b.Release("c1")
	if b.Registry().Has("c1") || b.Registry().Len() != 0 {
		t.Error("registry entry survived release")
	}
	if _, ok := b.Active(); ok {
		t.Error("binder still active after release")
	}
	if got, ok := b.View(); !ok || got.Local != l {
		t.Error("view dropped on release")
	}

	// media for a released call is ignored
	b.OnMediaChange("c1", core.MediaChange{Kind: core.SendingVideo, Active: true})
	if c.binds != 1 {
		t.Errorf("binds = %d after release, want 1", c.binds)
	}
}
