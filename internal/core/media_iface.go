package core

import (
	"context"

	"github.com/dkeye/callbridge/internal/domain"
	"github.com/pion/rtp"
)

// RenderSurface is a media sink the engine renders one stream into.
// Hidden surfaces stay bound but drop packets.
type RenderSurface interface {
	Name() string
	SetVisible(bool)
	Visible() bool
	WriteRTP(*rtp.Packet) error
}

// PermissionGate asks the platform for capture permission of one kind.
type PermissionGate interface {
	Request(ctx context.Context, kind domain.MediaKind) (bool, error)
}
