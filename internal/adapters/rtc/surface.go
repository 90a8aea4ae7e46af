package rtc

import (
	"errors"
	"sync/atomic"

	"github.com/dkeye/callbridge/internal/app/media"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

var ErrSurfaceClosed = errors.New("surface closed")

type SurfaceState int32

const (
	SurfaceVisible SurfaceState = iota
	SurfaceHidden
	SurfaceClosed
)

const streamID = "callbridge"

// TrackSurface is a render surface backed by a local RTP track. Viewers that
// added the track receive whatever the engine writes while it is visible.
type TrackSurface struct {
	Track *webrtc.TrackLocalStaticRTP
	name  string

	state   atomic.Int32 // starts hidden
	written atomic.Uint64
	dropped atomic.Uint64
}

func VideoCodec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
}

func NewTrackSurface(name string, codec webrtc.RTPCodecCapability) (*TrackSurface, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(codec, name, streamID)
	if err != nil {
		return nil, err
	}
	s := &TrackSurface{Track: track, name: name}
	s.state.Store(int32(SurfaceHidden))
	return s, nil
}

func (s *TrackSurface) Name() string { return s.name }

func (s *TrackSurface) State() SurfaceState {
	return SurfaceState(s.state.Load())
}

func (s *TrackSurface) SetVisible(v bool) {
	next := SurfaceHidden
	if v {
		next = SurfaceVisible
	}
	for {
		cur := s.state.Load()
		if SurfaceState(cur) == SurfaceClosed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

func (s *TrackSurface) Visible() bool {
	return s.State() == SurfaceVisible
}

// WriteRTP forwards pkt to the track; hidden surfaces drop it.
func (s *TrackSurface) WriteRTP(pkt *rtp.Packet) error {
	switch s.State() {
	case SurfaceClosed:
		return ErrSurfaceClosed
	case SurfaceHidden:
		s.dropped.Add(1)
		return nil
	}
	if err := s.Track.WriteRTP(pkt); err != nil {
		return err
	}
	s.written.Add(1)
	return nil
}

// Stats returns forwarded and dropped packet counts.
func (s *TrackSurface) Stats() (written, dropped uint64) {
	return s.written.Load(), s.dropped.Load()
}

func (s *TrackSurface) Close() {
	s.state.Store(int32(SurfaceClosed))
}

// NewView builds a named view with a local preview and a remote surface.
func NewView(name string) (media.View, *TrackSurface, *TrackSurface, error) {
	local, err := NewTrackSurface(name+"-local", VideoCodec())
	if err != nil {
		return media.View{}, nil, nil, err
	}
	remote, err := NewTrackSurface(name+"-remote", VideoCodec())
	if err != nil {
		return media.View{}, nil, nil, err
	}
	return media.View{Name: name, Local: local, Remote: remote}, local, remote, nil
}
