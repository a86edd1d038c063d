package voicechat

import (
	"context"
)

// Client is the embeddable voice chat client. It owns the signaling channel,
// the media connector, the reconciled room state and the session coordination
// between them. Construct with NewClient, register callbacks, then Connect.
type Client struct {
	cfg      Config
	logger   Logger
	signal   *SignalChannel
	media    *MediaConnector
	rec      *Reconciler
	coord    *Coordinator
	settings *SettingsStore
}

// Option customizes client construction.
type Option func(*clientOptions)

type clientOptions struct {
	logger  Logger
	storage Storage
	cue     CuePlayer
}

// WithLogger installs a structured logger. Defaults to no logging.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithStorage installs the persistence backend for device and volume
// settings. Defaults to in-memory.
func WithStorage(storage Storage) Option {
	return func(o *clientOptions) { o.storage = storage }
}

// WithCuePlayer installs the audio cue player driven by server test tone
// frames. Defaults to a no-op.
func WithCuePlayer(cue CuePlayer) Option {
	return func(o *clientOptions) { o.cue = cue }
}

// NewClient builds a client around the media backend. The backend is the
// host's adapter to its real-time audio transport; the client never dials
// media itself.
func NewClient(cfg Config, backend MediaBackend, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, NewError(ErrorInvalidConfig, "empty URL")
	}
	if backend == nil {
		return nil, NewError(ErrorInvalidConfig, "nil media backend")
	}

	var o clientOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := o.logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		signal:   NewSignalChannel(cfg, logger),
		media:    NewMediaConnector(backend, cfg, logger),
		rec:      NewReconciler(logger),
		settings: NewSettingsStore(o.storage, logger),
	}
	if o.cue != nil {
		c.rec.SetCuePlayer(o.cue)
	}
	c.coord = NewCoordinator(c.signal, c.media, c.rec, cfg, logger)
	c.applyPersistedSettings()
	return c, nil
}

// applyPersistedSettings pushes remembered volumes and devices into the media
// connector so they take effect as soon as a session exists.
func (c *Client) applyPersistedSettings() {
	s := c.settings.Load()
	c.media.SetMasterVolume(s.MasterVolume)
	c.media.SetSpeakerVolume(s.SpeakerVolume)
	c.media.SetMicrophoneGain(s.MicrophoneGain)
	for id, v := range s.UserVolumes {
		c.media.SetUserVolume(id, v)
	}
	if s.OutputDeviceID != "" {
		_ = c.media.SetOutputDevice(context.Background(), s.OutputDeviceID)
	}
}

// Connect dials the signaling server.
func (c *Client) Connect(ctx context.Context) error {
	return c.signal.Connect(ctx)
}

// Disconnect leaves any room, tears down media and closes the signaling
// channel.
func (c *Client) Disconnect(ctx context.Context) error {
	_ = c.coord.LeaveRoom()
	if err := c.media.Disconnect(ctx); err != nil {
		c.logger.Warn("media disconnect", map[string]any{"error": err.Error()})
	}
	return c.signal.Disconnect()
}

// State returns the signaling connection state.
func (c *Client) State() ConnectionState {
	return c.signal.State()
}

// Events exposes the callback registry for reconciled events.
func (c *Client) Events() *Dispatcher {
	return c.rec.Events()
}

// OnStateChange registers a signaling state observer. The returned function
// unsubscribes.
func (c *Client) OnStateChange(fn StateHandler) func() {
	return c.signal.OnStateChange(fn)
}

// OnSpeakingChanged registers a media speaking observer.
func (c *Client) OnSpeakingChanged(fn func(participantID string, speaking bool)) func() {
	return c.media.OnSpeakingChanged(fn)
}

// OnQualityChanged registers a media quality observer.
func (c *Client) OnQualityChanged(fn func(participantID string, quality int)) func() {
	return c.media.OnQualityChanged(fn)
}

// OnMediaConnectedChanged registers a media session observer; it is notified
// immediately with the current state.
func (c *Client) OnMediaConnectedChanged(fn func(connected bool)) func() {
	return c.media.OnConnectedChanged(fn)
}

// OnDataReceived registers an observer for data published by other
// participants through the media session.
func (c *Client) OnDataReceived(fn func(data []byte, participantID string)) func() {
	return c.media.OnDataReceived(fn)
}

// JoinRoom requests membership in the named room. Joining while in another
// room leaves it first. The user name is remembered for the next session.
func (c *Client) JoinRoom(roomName, userName, voiceMode string) error {
	if err := c.coord.JoinRoom(roomName, userName, voiceMode); err != nil {
		return err
	}
	c.persist(func(s *Settings) { s.UserName = userName })
	return nil
}

// LeaveRoom drops room membership.
func (c *Client) LeaveRoom() error {
	return c.coord.LeaveRoom()
}

// InRoom reports whether the client currently holds a room session.
func (c *Client) InRoom() bool {
	return c.coord.InRoom()
}

// Room returns the active room session.
func (c *Client) Room() (RoomSession, bool) {
	return c.rec.Room()
}

// UserID returns the identity assigned by the server on connect.
func (c *Client) UserID() string {
	return c.rec.UserID()
}

// Participants returns the roster of the active room.
func (c *Client) Participants() []Participant {
	return c.rec.Participants()
}

// Participant returns one roster entry.
func (c *Client) Participant(id string) (Participant, bool) {
	return c.rec.Participant(id)
}

// Messages returns the chat log of the active room, oldest first.
func (c *Client) Messages() []ChatEntry {
	return c.rec.Messages()
}

// Rooms returns the last received lobby list.
func (c *Client) Rooms() []RoomSummary {
	return c.rec.Rooms()
}

// ListRooms asks the server for the lobby list; the answer arrives through
// the room list callback.
func (c *Client) ListRooms() error {
	return c.signal.Send(msgGetRooms, nil)
}

// PreviewRoom asks for a single room's details without joining; the answer
// arrives through the room info callback.
func (c *Client) PreviewRoom(roomName string) error {
	return c.signal.Send(msgGetRoom, getRoomRequest{RoomName: roomName})
}

// SendChat sends a chat message to the active room. The message appears in
// the log when the server echoes it back.
func (c *Client) SendChat(content string) error {
	if content == "" {
		return NewError(ErrorChatFailed, "empty message")
	}
	return c.signal.Send(msgChatMessage, chatMessageRequest{Content: content})
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(messageID, emoji string) error {
	return c.signal.Send(msgReactionAdd, chatReactionRequest{MessageID: messageID, Emoji: emoji})
}

// RemoveReaction removes an emoji reaction from a message.
func (c *Client) RemoveReaction(messageID, emoji string) error {
	return c.signal.Send(msgReactionRemove, chatReactionRequest{MessageID: messageID, Emoji: emoji})
}

// SetMuted toggles the local microphone and announces the state to the room.
// The capture toggle applies even when the announcement cannot be sent.
func (c *Client) SetMuted(ctx context.Context, muted bool) error {
	if err := c.media.SetMicrophoneEnabled(ctx, !muted); err != nil && !IsMediaError(err) {
		return err
	}
	c.persist(func(s *Settings) { s.Muted = muted })
	return c.signal.Send(msgMuteSelf, muteSelfRequest{Muted: muted})
}

// MicrophoneEnabled reports local capture state, false without a session.
func (c *Client) MicrophoneEnabled() bool {
	return c.media.MicrophoneEnabled()
}

// SetInputDevice switches the capture device and persists the choice.
func (c *Client) SetInputDevice(ctx context.Context, deviceID string) error {
	if err := c.media.SetInputDevice(ctx, deviceID); err != nil {
		return err
	}
	c.persist(func(s *Settings) { s.InputDeviceID = deviceID })
	return nil
}

// SetOutputDevice switches the playback device and persists the choice.
func (c *Client) SetOutputDevice(ctx context.Context, deviceID string) error {
	if err := c.media.SetOutputDevice(ctx, deviceID); err != nil {
		return err
	}
	c.persist(func(s *Settings) { s.OutputDeviceID = deviceID })
	return nil
}

// EnumerateDevices lists audio devices through the media backend.
func (c *Client) EnumerateDevices(ctx context.Context) ([]AudioDevice, error) {
	return c.media.EnumerateDevices(ctx)
}

// SetMasterVolume sets and persists the 0..100 master playback volume.
func (c *Client) SetMasterVolume(volume int) {
	c.media.SetMasterVolume(volume)
	c.persist(func(s *Settings) { s.MasterVolume = clampVolume(volume) })
}

// SetSpeakerVolume sets and persists the 0..100 speaker multiplier.
func (c *Client) SetSpeakerVolume(volume int) {
	c.media.SetSpeakerVolume(volume)
	c.persist(func(s *Settings) { s.SpeakerVolume = clampVolume(volume) })
}

// SetUserVolume sets and persists the 0..100 volume for one participant.
func (c *Client) SetUserVolume(participantID string, volume int) {
	c.media.SetUserVolume(participantID, volume)
	c.persist(func(s *Settings) {
		if s.UserVolumes == nil {
			s.UserVolumes = make(map[string]int)
		}
		s.UserVolumes[participantID] = clampVolume(volume)
	})
}

// SetMicrophoneGain sets and persists the 0..200 capture gain.
func (c *Client) SetMicrophoneGain(gain int) {
	c.media.SetMicrophoneGain(gain)
	c.persist(func(s *Settings) {
		if gain < 0 {
			gain = 0
		}
		if gain > 200 {
			gain = 200
		}
		s.MicrophoneGain = gain
	})
}

// PublishData sends a reliable data payload to the room through the media
// session.
func (c *Client) PublishData(ctx context.Context, data []byte) error {
	return c.media.PublishData(ctx, data)
}

// Settings returns the persisted device and volume settings.
func (c *Client) Settings() Settings {
	return c.settings.Load()
}

func (c *Client) persist(mutate func(*Settings)) {
	s := c.settings.Load()
	mutate(&s)
	if err := c.settings.Save(s); err != nil {
		c.logger.Warn("persist settings", map[string]any{"error": err.Error()})
	}
}
