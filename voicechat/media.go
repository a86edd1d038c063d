package voicechat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MediaConnector owns the lifecycle of the connection to the media backend.
// At most one underlying session exists at any instant; connects and
// disconnects are serialized through a shared pending operation, and every
// session carries a monotonically increasing generation id so late events
// from a superseded session are discarded instead of cross-applied.
type MediaConnector struct {
	backend MediaBackend
	cfg     Config
	logger  Logger

	mu        sync.Mutex
	session   MediaSession
	sessionID string // correlation id for logs
	gen       uint64
	pending   *pendingConnect
	lastURL   string
	lastToken string

	inputDevice   string
	outputDevice  string
	masterVolume  int            // 0..100
	speakerVolume int            // 0..100
	userVolumes   map[string]int // participant id -> 0..100
	micGain       int            // 0..200, 100 = unity

	speakingHandlers  map[int]func(participantID string, speaking bool)
	qualityHandlers   map[int]func(participantID string, quality int)
	dataHandlers      map[int]func(data []byte, participantID string)
	connectedHandlers map[int]func(connected bool)
	nextHandlerID     int
}

// NewMediaConnector constructs the connector around an external backend.
func NewMediaConnector(backend MediaBackend, cfg Config, logger Logger) *MediaConnector {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MediaConnector{
		backend:           backend,
		cfg:               cfg,
		logger:            logger,
		masterVolume:      100,
		speakerVolume:     100,
		userVolumes:       make(map[string]int),
		micGain:           100,
		speakingHandlers:  make(map[int]func(string, bool)),
		qualityHandlers:   make(map[int]func(string, int)),
		dataHandlers:      make(map[int]func([]byte, string)),
		connectedHandlers: make(map[int]func(bool)),
	}
}

// Connected reports whether a session currently exists.
func (m *MediaConnector) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Connect establishes a session against the backend. Safe to call repeatedly
// and concurrently: an in-flight connect is awaited, an existing session is
// fully torn down (with a bounded grace delay for its teardown events) before
// a new one is constructed, and the whole attempt is bounded by the configured
// connect timeout.
func (m *MediaConnector) Connect(ctx context.Context, url, token string) error {
	// Await any in-flight operation first. If it left a live session behind,
	// this call is a no-op.
	m.mu.Lock()
	for m.pending != nil {
		p := m.pending
		m.mu.Unlock()
		select {
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
	}
	if m.session != nil && m.lastURL == url && m.lastToken == token {
		// The awaited operation already yielded a live session for these
		// credentials; nothing to do.
		m.mu.Unlock()
		return nil
	}
	old := m.session
	m.session = nil
	if old != nil {
		// Invalidate the old generation before teardown so its late events
		// are discarded, never misattributed to the replacement.
		m.gen++
	}
	p := &pendingConnect{done: make(chan struct{})}
	m.pending = p
	m.lastURL = url
	m.lastToken = token
	m.mu.Unlock()

	err := m.establish(ctx, url, token, old)

	m.mu.Lock()
	p.err = err
	m.pending = nil
	m.mu.Unlock()
	close(p.done)
	return err
}

func (m *MediaConnector) establish(ctx context.Context, url, token string, old MediaSession) error {
	if old != nil {
		m.logger.Info("tearing down superseded media session", nil)
		if err := old.Close(ctx, true); err != nil {
			m.logger.Warn("close superseded session", map[string]any{"error": err.Error()})
		}
		m.notifyConnected(false)
		if m.cfg.MediaTeardownGrace > 0 {
			time.Sleep(m.cfg.MediaTeardownGrace)
		}
	}

	m.mu.Lock()
	m.gen++
	myGen := m.gen
	m.mu.Unlock()

	handlers := m.guardedHandlers(myGen)

	// No true cancellation exists for the backend connect: when it outlives
	// the timeout we let it finish and immediately reverse its effect.
	type result struct {
		session MediaSession
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		s, err := m.backend.Connect(ctx, url, token, handlers)
		resCh <- result{session: s, err: err}
	}()

	timeout := m.cfg.MediaConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		if res.err != nil {
			return res.err
		}
		return m.adoptSession(res.session, myGen)
	case <-timer.C:
		// Invalidate the generation first: the late session's handlers go
		// dead before it can report anything, including its own connect.
		m.mu.Lock()
		m.gen++
		m.mu.Unlock()
		go func() {
			res := <-resCh
			if res.session != nil {
				m.logger.Warn("late media connect after timeout, tearing down", nil)
				_ = res.session.Close(context.Background(), true)
			}
		}()
		return NewError(ErrorMediaTimeout, "media connect timed out")
	case <-ctx.Done():
		m.mu.Lock()
		m.gen++
		m.mu.Unlock()
		go func() {
			res := <-resCh
			if res.session != nil {
				_ = res.session.Close(context.Background(), true)
			}
		}()
		return ctx.Err()
	}
}

func (m *MediaConnector) adoptSession(s MediaSession, gen uint64) error {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = s.Close(context.Background(), true)
		return NewError(ErrorNoSession, "session superseded during connect")
	}
	m.session = s
	m.sessionID = uuid.NewString()
	id := m.sessionID
	output := m.outputDevice
	gain := m.micGain
	m.mu.Unlock()

	m.logger.Info("media session connected", map[string]any{"session": id})

	// Apply remembered settings opportunistically; failures are logged, not
	// fatal to the connect.
	if output != "" {
		if err := s.SetOutputDevice(context.Background(), output); err != nil {
			m.logger.Warn("apply output device", map[string]any{"error": err.Error()})
		}
	}
	if gain != 100 {
		s.SetCaptureGain(float64(gain) / 100)
	}
	m.applyVolumes(s)
	return nil
}

// Disconnect waits for any in-flight connect to settle, then tears the
// session down, releasing audio capture first. No-op when no session exists.
func (m *MediaConnector) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	for m.pending != nil {
		p := m.pending
		m.mu.Unlock()
		select {
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
	}
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	m.session = nil
	m.gen++
	m.lastURL = ""
	m.lastToken = ""
	id := m.sessionID
	m.mu.Unlock()

	m.logger.Info("disconnecting media session", map[string]any{"session": id})
	err := s.Close(ctx, true)
	m.notifyConnected(false)
	return err
}

// SetMicrophoneEnabled toggles local audio capture. Requires an active
// session; backend failures surface with their distinct category codes.
func (m *MediaConnector) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	s := m.currentSession()
	if s == nil {
		return NewError(ErrorNoSession, "no media session")
	}
	if err := s.SetMicrophoneEnabled(ctx, enabled); err != nil {
		return err
	}
	if enabled {
		m.mu.Lock()
		gain := m.micGain
		m.mu.Unlock()
		if gain != 100 {
			s.SetCaptureGain(float64(gain) / 100)
		}
	}
	return nil
}

// MicrophoneEnabled reports the capture state, false without a session.
func (m *MediaConnector) MicrophoneEnabled() bool {
	s := m.currentSession()
	if s == nil {
		return false
	}
	return s.MicrophoneEnabled()
}

// SetInputDevice replaces the capture device. The capture track is recreated
// disabled and re-enabled only if it was enabled before, so a muted user
// never unmutes as a side effect.
func (m *MediaConnector) SetInputDevice(ctx context.Context, deviceID string) error {
	s := m.currentSession()
	if s == nil {
		return NewError(ErrorNoSession, "no media session")
	}
	wasEnabled := s.MicrophoneEnabled()
	if wasEnabled {
		if err := s.SetMicrophoneEnabled(ctx, false); err != nil {
			return err
		}
	}
	if err := s.RecreateCapture(ctx, deviceID); err != nil {
		return err
	}
	m.mu.Lock()
	m.inputDevice = deviceID
	gain := m.micGain
	m.mu.Unlock()
	if gain != 100 {
		s.SetCaptureGain(float64(gain) / 100)
	}
	if wasEnabled {
		return s.SetMicrophoneEnabled(ctx, true)
	}
	return nil
}

// SetOutputDevice remembers the playback device and applies it to the active
// session if one exists.
func (m *MediaConnector) SetOutputDevice(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	m.outputDevice = deviceID
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.SetOutputDevice(ctx, deviceID)
}

// EnumerateDevices lists input and output devices through the backend.
func (m *MediaConnector) EnumerateDevices(ctx context.Context) ([]AudioDevice, error) {
	s := m.currentSession()
	if s == nil {
		return nil, NewError(ErrorNoSession, "no media session")
	}
	return s.EnumerateDevices(ctx)
}

// SetMasterVolume sets the 0..100 master playback volume.
func (m *MediaConnector) SetMasterVolume(volume int) {
	m.mu.Lock()
	m.masterVolume = clampVolume(volume)
	s := m.session
	m.mu.Unlock()
	if s != nil {
		m.applyVolumes(s)
	}
}

// SetSpeakerVolume sets the 0..100 speaker multiplier applied on top of
// master and per-user volumes.
func (m *MediaConnector) SetSpeakerVolume(volume int) {
	m.mu.Lock()
	m.speakerVolume = clampVolume(volume)
	s := m.session
	m.mu.Unlock()
	if s != nil {
		m.applyVolumes(s)
	}
}

// SetUserVolume sets the 0..100 volume for one participant.
func (m *MediaConnector) SetUserVolume(participantID string, volume int) {
	m.mu.Lock()
	m.userVolumes[participantID] = clampVolume(volume)
	s := m.session
	m.mu.Unlock()
	if s != nil {
		m.applyVolumes(s)
	}
}

// SetMicrophoneGain sets the capture gain, 0..200 where 100 is unity.
func (m *MediaConnector) SetMicrophoneGain(gain int) {
	if gain < 0 {
		gain = 0
	}
	if gain > 200 {
		gain = 200
	}
	m.mu.Lock()
	m.micGain = gain
	s := m.session
	m.mu.Unlock()
	if s != nil {
		s.SetCaptureGain(float64(gain) / 100)
	}
}

// PublishData sends a reliable data payload through the session.
func (m *MediaConnector) PublishData(ctx context.Context, data []byte) error {
	s := m.currentSession()
	if s == nil {
		return NewError(ErrorNoSession, "no media session")
	}
	return s.PublishData(ctx, data)
}

// applyVolumes pushes the combined master * user * speaker volume to every
// remote participant of the given session.
func (m *MediaConnector) applyVolumes(s MediaSession) {
	m.mu.Lock()
	master := m.masterVolume
	speaker := m.speakerVolume
	volumes := make(map[string]int, len(m.userVolumes))
	for id, v := range m.userVolumes {
		volumes[id] = v
	}
	m.mu.Unlock()

	for _, id := range s.RemoteIdentities() {
		user, ok := volumes[id]
		if !ok {
			user = 100
		}
		final := float64(master) / 100 * float64(user) / 100 * float64(speaker) / 100
		s.SetParticipantVolume(id, final)
	}
}

func (m *MediaConnector) participantVolume(s MediaSession, participantID string) {
	m.mu.Lock()
	master := m.masterVolume
	speaker := m.speakerVolume
	user, ok := m.userVolumes[participantID]
	m.mu.Unlock()
	if !ok {
		user = 100
	}
	s.SetParticipantVolume(participantID, float64(master)/100*float64(user)/100*float64(speaker)/100)
}

// guardedHandlers builds the backend handler set for one session generation.
// Every handler re-checks the generation before acting; events from a
// superseded session are silently discarded.
func (m *MediaConnector) guardedHandlers(gen uint64) SessionHandlers {
	live := func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.gen == gen
	}
	return SessionHandlers{
		OnConnected: func() {
			if !live() {
				return
			}
			m.notifyConnected(true)
		},
		OnDisconnected: func(reason DisconnectReason) {
			if !live() {
				m.logger.Debug("ignoring disconnect from superseded session", nil)
				return
			}
			if reason == DisconnectClientInitiated {
				m.logger.Info("media session closed by client", nil)
			} else {
				m.logger.Warn("media session lost", map[string]any{"reason": reason.String()})
			}
			m.mu.Lock()
			m.session = nil
			m.lastURL = ""
			m.lastToken = ""
			m.mu.Unlock()
			m.notifyConnected(false)
		},
		OnSpeakingChanged: func(id string, speaking bool) {
			if !live() {
				return
			}
			for _, fn := range m.snapshotSpeaking() {
				fn(id, speaking)
			}
		},
		OnQualityChanged: func(id string, q MediaQuality) {
			if !live() {
				return
			}
			mapped := mapQuality(q)
			for _, fn := range m.snapshotQuality() {
				fn(id, mapped)
			}
		},
		OnTrackSubscribed: func(id string) {
			if !live() {
				return
			}
			s := m.currentSession()
			if s != nil {
				m.participantVolume(s, id)
			}
		},
		OnTrackUnsubscribed: func(id string) {
			if !live() {
				return
			}
			// No audio track means nobody can hear them speak.
			for _, fn := range m.snapshotSpeaking() {
				fn(id, false)
			}
		},
		OnDataReceived: func(data []byte, id string) {
			if !live() {
				return
			}
			for _, fn := range m.snapshotData() {
				fn(data, id)
			}
		},
	}
}

// OnSpeakingChanged registers a per-participant speaking observer. The
// returned function unsubscribes.
func (m *MediaConnector) OnSpeakingChanged(fn func(participantID string, speaking bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.speakingHandlers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.speakingHandlers, id)
	}
}

// OnQualityChanged registers a per-participant quality observer on the coarse
// 0/50/75/100 scale. The returned function unsubscribes.
func (m *MediaConnector) OnQualityChanged(fn func(participantID string, quality int)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.qualityHandlers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.qualityHandlers, id)
	}
}

// OnDataReceived registers a data observer. The returned function
// unsubscribes.
func (m *MediaConnector) OnDataReceived(fn func(data []byte, participantID string)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.dataHandlers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.dataHandlers, id)
	}
}

// OnConnectedChanged registers a session-connected observer and immediately
// notifies it of the current state. The returned function unsubscribes.
func (m *MediaConnector) OnConnectedChanged(fn func(connected bool)) func() {
	m.mu.Lock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.connectedHandlers[id] = fn
	connected := m.session != nil
	m.mu.Unlock()

	fn(connected)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.connectedHandlers, id)
	}
}

func (m *MediaConnector) currentSession() MediaSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *MediaConnector) notifyConnected(connected bool) {
	m.mu.Lock()
	handlers := make([]func(bool), 0, len(m.connectedHandlers))
	for _, fn := range m.connectedHandlers {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(connected)
	}
}

func (m *MediaConnector) snapshotSpeaking() []func(string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]func(string, bool), 0, len(m.speakingHandlers))
	for _, fn := range m.speakingHandlers {
		out = append(out, fn)
	}
	return out
}

func (m *MediaConnector) snapshotQuality() []func(string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]func(string, int), 0, len(m.qualityHandlers))
	for _, fn := range m.qualityHandlers {
		out = append(out, fn)
	}
	return out
}

func (m *MediaConnector) snapshotData() []func([]byte, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]func([]byte, string), 0, len(m.dataHandlers))
	for _, fn := range m.dataHandlers {
		out = append(out, fn)
	}
	return out
}

func mapQuality(q MediaQuality) int {
	switch q {
	case QualityExcellent:
		return 100
	case QualityGood:
		return 75
	case QualityPoor:
		return 50
	case QualityLost:
		return 0
	default:
		return 75
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
