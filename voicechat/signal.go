package voicechat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/tokicnikolaus/voice-chat/voicechat/internal"
)

// FrameHandler receives every inbound signaling frame except heartbeat frames.
type FrameHandler func(Frame)

// StateHandler receives connection state transitions.
type StateHandler func(StateEvent)

// SignalChannel owns the one logical websocket connection to the signaling
// server. It serializes connect/disconnect through a shared pending operation,
// answers heartbeats internally, and drives the reconnect state machine.
type SignalChannel struct {
	cfg    Config
	logger Logger

	mu            sync.Mutex
	conn          *internal.Conn
	state         ConnectionState
	pending       *pendingConnect
	stay          bool // cleared by explicit Disconnect; suppresses auto-reconnect
	attempts      int
	cancel        context.CancelFunc
	writeCh       chan Frame
	frameHandlers map[int]FrameHandler
	stateHandlers map[int]StateHandler
	nextHandlerID int
}

// pendingConnect is the shared awaitable handle for an in-flight connect. A
// second Connect call awaits done instead of dialing again.
type pendingConnect struct {
	done chan struct{}
	err  error
}

// NewSignalChannel constructs the channel. It does not dial.
func NewSignalChannel(cfg Config, logger Logger) *SignalChannel {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SignalChannel{
		cfg:           cfg,
		logger:        logger,
		state:         StateDisconnected,
		frameHandlers: make(map[int]FrameHandler),
		stateHandlers: make(map[int]StateHandler),
	}
}

// State returns the current connection state.
func (s *SignalChannel) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnFrame registers a frame observer. The returned function unsubscribes.
func (s *SignalChannel) OnFrame(fn FrameHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHandlerID
	s.nextHandlerID++
	s.frameHandlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.frameHandlers, id)
	}
}

// OnStateChange registers a state observer and immediately notifies it of the
// current state. The returned function unsubscribes.
func (s *SignalChannel) OnStateChange(fn StateHandler) func() {
	s.mu.Lock()
	id := s.nextHandlerID
	s.nextHandlerID++
	s.stateHandlers[id] = fn
	cur := s.state
	s.mu.Unlock()

	fn(StateEvent{OldState: cur, NewState: cur})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.stateHandlers, id)
	}
}

// Connect dials the server. Idempotent: connected resolves immediately, an
// in-flight attempt is awaited instead of duplicated. A fresh Connect after
// reconnect exhaustion re-arms the retry counter.
func (s *SignalChannel) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	if p := s.pending; p != nil {
		s.mu.Unlock()
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.cfg.URL == "" {
		s.mu.Unlock()
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	p := &pendingConnect{done: make(chan struct{})}
	s.pending = p
	s.stay = true
	s.attempts = 0
	s.mu.Unlock()

	s.setState(StateConnecting, nil)
	err := s.dial(ctx)

	s.mu.Lock()
	p.err = err
	s.pending = nil
	s.mu.Unlock()
	close(p.done)

	if err != nil {
		s.setState(StateError, err)
		return err
	}
	s.setState(StateConnected, nil)
	return nil
}

// Disconnect closes the transport and suppresses the reconnect path. Safe to
// call when not connected.
func (s *SignalChannel) Disconnect() error {
	s.mu.Lock()
	s.stay = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	s.setState(StateDisconnected, nil)
	return err
}

// Send marshals and queues one frame. Fire-and-forget: frames are dropped
// with an error when not connected, callers re-send after reconnect if they
// care.
func (s *SignalChannel) Send(msgType string, payload any) error {
	s.mu.Lock()
	writeCh := s.writeCh
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || writeCh == nil {
		s.logger.Warn("send dropped, not connected", map[string]any{"type": msgType})
		return NewError(ErrorNotConnected, "not connected")
	}

	frame := Frame{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return WrapError(ErrorSerialization, "marshal payload", err)
		}
		frame.Payload = data
	}

	select {
	case writeCh <- frame:
		return nil
	default:
		s.logger.Warn("send dropped, write queue full", map[string]any{"type": msgType})
		return NewError(ErrorNotConnected, "write queue full")
	}
}

// dial opens the socket and starts the read/write/heartbeat loops. Called with
// the pending operation held.
func (s *SignalChannel) dial(ctx context.Context) error {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return WrapError(ErrorInvalidConfig, "parse URL", err)
	}

	dialCtx := ctx
	if s.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		return WrapError(ErrorConnection, "dial signaling server", err)
	}

	conn := internal.NewConn(ws, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
	runCtx, cancel := context.WithCancel(context.Background())
	writeCh := make(chan Frame, 16)

	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.writeCh = writeCh
	s.attempts = 0
	s.mu.Unlock()

	go s.readLoop(runCtx, conn)
	go s.writeLoop(runCtx, conn, writeCh)
	go s.heartbeatLoop(runCtx, writeCh)
	return nil
}

func (s *SignalChannel) readLoop(ctx context.Context, conn *internal.Conn) {
	for {
		var frame Frame
		if err := conn.Read(ctx, &frame); err != nil {
			// Context cancellation means an explicit Disconnect or a
			// superseded connection. Anything else, including a clean close
			// from the server side, goes through the reconnect path.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			s.handleTransportLoss(conn)
			return
		}

		switch frame.Type {
		case msgPing:
			// Heartbeat request: echo back, never forward.
			select {
			case s.currentWriteCh() <- Frame{Type: msgPong}:
			default:
			}
		case msgPong:
			// Heartbeat echo, consumed internally.
		default:
			s.dispatchFrame(frame)
		}
	}
}

func (s *SignalChannel) writeLoop(ctx context.Context, conn *internal.Conn, writeCh chan Frame) {
	for {
		select {
		case frame := <-writeCh:
			if err := conn.Write(ctx, frame); err != nil {
				if isExpectedDisconnect(ctx, err) {
					return
				}
				s.logger.Warn("write loop exit", map[string]any{"error": err.Error()})
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *SignalChannel) heartbeatLoop(ctx context.Context, writeCh chan Frame) {
	if s.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case writeCh <- Frame{Type: msgPing}:
			default:
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *SignalChannel) currentWriteCh() chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCh
}

// handleTransportLoss reacts to an unexpected close of a specific connection.
// A stale loop whose connection was already replaced must not disturb the
// current one.
func (s *SignalChannel) handleTransportLoss(conn *internal.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	stay := s.stay && s.cfg.AutoReconnect
	var p *pendingConnect
	if stay {
		// The pending operation spans the whole reconnect cycle, backoff
		// sleeps included, so a user Connect during the cycle awaits it
		// instead of dialing a second socket.
		p = &pendingConnect{done: make(chan struct{})}
		s.pending = p
	}
	s.mu.Unlock()

	_ = conn.CloseNow()

	if !stay {
		s.setState(StateDisconnected, nil)
		return
	}
	s.setState(StateReconnecting, nil)
	go s.reconnectLoop(p)
}

// reconnectLoop retries with exponential backoff until attached, told to stop,
// or out of attempts. It owns the pending operation created at transport loss
// and settles it exactly once.
func (s *SignalChannel) reconnectLoop(p *pendingConnect) {
	finish := func(err error) {
		s.mu.Lock()
		if s.pending == p {
			s.pending = nil
		}
		s.mu.Unlock()
		p.err = err
		close(p.done)
	}

	for {
		s.mu.Lock()
		if !s.stay {
			s.mu.Unlock()
			s.setState(StateDisconnected, nil)
			finish(NewError(ErrorDisconnected, "disconnected"))
			return
		}
		if s.attempts >= s.cfg.MaxReconnectTries {
			s.mu.Unlock()
			s.logger.Warn("reconnect attempts exhausted", map[string]any{"attempts": s.cfg.MaxReconnectTries})
			err := NewError(ErrorDisconnected, "reconnect attempts exhausted")
			s.setState(StateError, err)
			finish(err)
			return
		}
		s.attempts++
		attempt := s.attempts
		s.mu.Unlock()

		delay := backoffDelay(s.cfg.ReconnectInterval, s.cfg.MaxReconnectDelay, attempt)
		s.logger.Info("reconnecting", map[string]any{"attempt": attempt, "delay": delay.String()})
		time.Sleep(delay)

		s.mu.Lock()
		if !s.stay {
			s.mu.Unlock()
			s.setState(StateDisconnected, nil)
			finish(NewError(ErrorDisconnected, "disconnected"))
			return
		}
		s.mu.Unlock()

		err := s.dial(context.Background())
		if err == nil {
			s.setState(StateConnected, nil)
			finish(nil)
			return
		}
		s.logger.Warn("reconnect attempt failed", map[string]any{"attempt": attempt, "error": err.Error()})
	}
}

// backoffDelay is base * 2^(attempt-1) capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func (s *SignalChannel) setState(state ConnectionState, err error) {
	s.mu.Lock()
	old := s.state
	if old == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	handlers := make([]StateHandler, 0, len(s.stateHandlers))
	for _, fn := range s.stateHandlers {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()

	ev := StateEvent{OldState: old, NewState: state, Error: err}
	for _, fn := range handlers {
		fn(ev)
	}
}

func (s *SignalChannel) dispatchFrame(frame Frame) {
	s.mu.Lock()
	handlers := make([]FrameHandler, 0, len(s.frameHandlers))
	for _, fn := range s.frameHandlers {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(frame)
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
