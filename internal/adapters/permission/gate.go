// Package permission answers capture permission requests from static grants.
package permission

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dkeye/callbridge/internal/config"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// StaticGate grants whatever the host configuration allows.
type StaticGate struct {
	audio, video bool
	prompts      atomic.Int64
}

func NewStaticGate(p config.Permissions) *StaticGate {
	return &StaticGate{audio: p.Audio, video: p.Video}
}

func (g *StaticGate) Request(ctx context.Context, kind domain.MediaKind) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.prompts.Add(1)

	var granted bool
	switch kind {
	case domain.MediaAudio:
		granted = g.audio
	case domain.MediaVideo:
		granted = g.video
	default:
		return false, fmt.Errorf("unknown media kind %q", kind)
	}
	log.Debug().Str("module", "permission").Str("kind", string(kind)).Bool("granted", granted).Msg("permission request")
	return granted, nil
}

// Prompts counts the requests seen so far.
func (g *StaticGate) Prompts() int64 {
	return g.prompts.Load()
}
