package voicechat

import "context"

// The media transport backend is an external, already-implemented real-time
// audio service. The SDK depends only on this contract: connect with a URL and
// short-lived token, receive session events, drive microphone/device/volume
// controls. Implementations adapt a concrete SDK (e.g. a WebRTC room client)
// to these interfaces.

// MediaQuality is the backend's connection quality report for a participant.
type MediaQuality int

const (
	QualityLost MediaQuality = iota
	QualityPoor
	QualityGood
	QualityExcellent
)

// DisconnectReason says why a media session ended.
type DisconnectReason int

const (
	DisconnectClientInitiated DisconnectReason = iota
	DisconnectJoinFailure
	DisconnectStateMismatch
	DisconnectUnknown
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectClientInitiated:
		return "client_initiated"
	case DisconnectJoinFailure:
		return "join_failure"
	case DisconnectStateMismatch:
		return "state_mismatch"
	default:
		return "unknown"
	}
}

// SessionHandlers carry backend events into the SDK. All handlers are
// optional. The backend may invoke them from its own goroutines.
type SessionHandlers struct {
	OnConnected         func()
	OnDisconnected      func(reason DisconnectReason)
	OnSpeakingChanged   func(participantID string, speaking bool)
	OnQualityChanged    func(participantID string, quality MediaQuality)
	OnTrackSubscribed   func(participantID string)
	OnTrackUnsubscribed func(participantID string)
	OnDataReceived      func(data []byte, participantID string)
}

// AudioDevice describes one enumerable input or output device.
type AudioDevice struct {
	ID    string
	Label string
	Input bool
}

// MediaSession is one live connection to the media backend.
type MediaSession interface {
	// Close tears the session down. stopCapture releases the microphone
	// before the transport closes.
	Close(ctx context.Context, stopCapture bool) error

	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	MicrophoneEnabled() bool

	// RecreateCapture replaces the capture track with one bound to deviceID.
	// The track is created disabled; the caller re-enables it if needed.
	RecreateCapture(ctx context.Context, deviceID string) error
	SetOutputDevice(ctx context.Context, deviceID string) error
	EnumerateDevices(ctx context.Context) ([]AudioDevice, error)

	// SetParticipantVolume applies a final 0..1 gain to one remote
	// participant's audio.
	SetParticipantVolume(participantID string, volume float64)
	// SetCaptureGain applies 0..2 gain to the local capture (1 = unity).
	SetCaptureGain(gain float64)

	PublishData(ctx context.Context, data []byte) error

	LocalIdentity() string
	RemoteIdentities() []string
}

// MediaBackend constructs sessions. Connect blocks until the session is
// established or fails; handlers are registered before any event can fire.
type MediaBackend interface {
	Connect(ctx context.Context, url, token string, handlers SessionHandlers) (MediaSession, error)
}
