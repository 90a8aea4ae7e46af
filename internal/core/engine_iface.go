package core

import (
	"fmt"

	"github.com/dkeye/callbridge/internal/domain"
)

// AuthResult is what an authenticator reports once authorization settles.
type AuthResult struct {
	OK bool
	// Reason is the engine's failure code, empty on success.
	Reason string
}

// Authenticator authorizes a session with a bearer token.
type Authenticator interface {
	// AuthorizeWith hands token to the engine. done fires exactly once.
	AuthorizeWith(token string, done func(AuthResult))
}

// Engine is the third-party calling engine as seen by the bridge.
// All callbacks are asynchronous; none of them may be assumed to fire on the
// caller's goroutine.
type Engine interface {
	NewTokenAuthenticator() Authenticator
	// Initialize installs a and performs engine bring-up. done reports whether
	// a stored login was restored.
	Initialize(a Authenticator, done func(loggedIn bool))
	// Authenticator returns the installed authenticator or nil.
	Authenticator() Authenticator
	// OnIncoming replaces the incoming-call listener.
	OnIncoming(fn func(EngineCall))
	ApplyPhoneSettings(PhoneSettings)
}

// EngineCall is one engine-side call handle.
type EngineCall interface {
	ID() string
	Memberships() []domain.Membership
	MediaFlags() domain.MediaFlags
	// SetCallbacks replaces the full callback set of the call.
	SetCallbacks(CallCallbacks)
	// SetRenderSurfaces binds the local preview and remote surfaces to the
	// call's media pipeline. The engine needs this again after a stream stops.
	SetRenderSurfaces(local, remote RenderSurface)
	Answer(opt MediaOption, done func(error))
}

// CallCallbacks is the per-call callback contract. Each fires once per
// underlying transition.
type CallCallbacks struct {
	OnRinging           func()
	OnConnected         func()
	OnDisconnected      func(reason string)
	OnFailed            func(reason string)
	OnMembershipChanged func(change string)
	OnMediaChanged      func(change MediaChange)
	OnInfoChanged       func()
}

// MediaChangeKind enumerates the media notifications the bridge understands.
type MediaChangeKind int

const (
	MediaChangeUnknown MediaChangeKind = iota
	RemoteSendingVideo
	RemoteSendingAudio
	RemoteSendingScreenShare
	SendingVideo
	SendingAudio
	SendingScreenShare
	ReceivingVideo
	ReceivingAudio
	CameraSwitched
	SpeakerSwitched
)

func (k MediaChangeKind) String() string {
	switch k {
	case RemoteSendingVideo:
		return "RemoteSendingVideo"
	case RemoteSendingAudio:
		return "RemoteSendingAudio"
	case RemoteSendingScreenShare:
		return "RemoteSendingScreenShare"
	case SendingVideo:
		return "SendingVideo"
	case SendingAudio:
		return "SendingAudio"
	case SendingScreenShare:
		return "SendingScreenShare"
	case ReceivingVideo:
		return "ReceivingVideo"
	case ReceivingAudio:
		return "ReceivingAudio"
	case CameraSwitched:
		return "CameraSwitched"
	case SpeakerSwitched:
		return "SpeakerSwitched"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ParseMediaChangeKind maps a String() value back to its kind.
func ParseMediaChangeKind(s string) MediaChangeKind {
	for k := RemoteSendingVideo; k <= SpeakerSwitched; k++ {
		if k.String() == s {
			return k
		}
	}
	return MediaChangeUnknown
}

// MediaChange is one media notification; Active reports the new direction
// state for stream kinds and is ignored for device switches.
type MediaChange struct {
	Kind   MediaChangeKind
	Active bool
}

// MediaOption is passed to EngineCall.Answer.
type MediaOption struct {
	Audio            bool
	Video            bool
	Moderator        bool
	PIN              string
	CompositedLayout string
}

// AudioVideoOption is the answer option used for every incoming call.
func AudioVideoOption() MediaOption {
	return MediaOption{Audio: true, Video: true, CompositedLayout: "grid"}
}

// PhoneSettings is the fixed phone/media configuration applied after answer.
type PhoneSettings struct {
	VideoStreamMode       string `mapstructure:"video_stream_mode"`
	AudioBNR              bool   `mapstructure:"audio_bnr"`
	AudioBNRMode          string `mapstructure:"audio_bnr_mode"`
	DefaultFacingMode     string `mapstructure:"default_facing_mode"`
	VideoMaxRxBandwidth   int    `mapstructure:"video_max_rx_bandwidth"`
	VideoMaxTxBandwidth   int    `mapstructure:"video_max_tx_bandwidth"`
	SharingMaxRxBandwidth int    `mapstructure:"sharing_max_rx_bandwidth"`
	AudioMaxRxBandwidth   int    `mapstructure:"audio_max_rx_bandwidth"`
	BackgroundConnection  bool   `mapstructure:"background_connection"`
	DefaultLoudSpeaker    bool   `mapstructure:"default_loud_speaker"`
	DecoderMosaic         bool   `mapstructure:"decoder_mosaic"`
	VideoMaxTxFPS         int    `mapstructure:"video_max_tx_fps"`
}
