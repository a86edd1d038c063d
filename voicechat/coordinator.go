package voicechat

import (
	"context"
	"sync"
)

// roomPhase is the coordinator's room intent, distinct from the reconciled
// server state: it tracks what the client asked for while the server answer is
// still in flight.
type roomPhase int

const (
	phaseIdle roomPhase = iota
	phaseJoining
	phaseInRoom
	phaseLeaving
)

// Coordinator glues the three halves together: it feeds signaling frames to
// the reconciler, drives the media connector off reconciled room transitions,
// and folds media-side presence events back into the roster. Signaling
// membership is authoritative; a media failure never evicts the client from
// the room.
type Coordinator struct {
	cfg    Config
	logger Logger
	signal *SignalChannel
	media  *MediaConnector
	rec    *Reconciler

	mu    sync.Mutex
	phase roomPhase
}

// NewCoordinator wires the channel, connector and reconciler together.
func NewCoordinator(signal *SignalChannel, media *MediaConnector, rec *Reconciler, cfg Config, logger Logger) *Coordinator {
	if logger == nil {
		logger = noopLogger{}
	}
	c := &Coordinator{
		cfg:    cfg,
		logger: logger,
		signal: signal,
		media:  media,
		rec:    rec,
	}

	rec.hookRoomJoined = c.roomJoined
	rec.hookRoomExit = c.roomExited
	rec.hookError = c.serverError

	signal.OnFrame(rec.Apply)
	signal.OnStateChange(c.signalState)

	media.OnSpeakingChanged(rec.SetSpeaking)
	media.OnQualityChanged(rec.SetQuality)

	return c
}

// JoinRoom asks the server for room membership. A switch is a full leave of
// the current room followed by the join, never a direct transition: the old
// media session is completely gone before the new room's credentials can
// arrive.
func (c *Coordinator) JoinRoom(roomName, userName, voiceMode string) error {
	c.mu.Lock()
	if c.phase == phaseJoining {
		c.mu.Unlock()
		return NewError(ErrorJoinFailed, "join already in progress")
	}
	leaveFirst := c.phase == phaseInRoom
	c.mu.Unlock()

	if leaveFirst {
		if err := c.LeaveRoom(); err != nil {
			return err
		}
	}
	c.setPhase(phaseJoining)
	err := c.signal.Send(msgJoinRoom, joinRoomRequest{
		RoomName:  roomName,
		UserName:  userName,
		VoiceMode: voiceMode,
	})
	if err != nil {
		c.setPhase(phaseIdle)
		return err
	}
	c.logger.Info("join requested", map[string]any{"room": roomName, "switch": leaveFirst})
	return nil
}

// LeaveRoom drops room membership: media session first, then the leave_room
// announcement, then the local room state. The server's own room_left echo
// finds no room and is a no-op. When the channel is already gone the server
// has dropped us anyway, so the local teardown still stands.
func (c *Coordinator) LeaveRoom() error {
	if _, ok := c.rec.Room(); !ok {
		return nil
	}
	c.setPhase(phaseLeaving)
	if err := c.media.Disconnect(context.Background()); err != nil {
		c.logger.Warn("media disconnect", map[string]any{"error": err.Error()})
	}
	if err := c.signal.Send(msgLeaveRoom, nil); err != nil {
		c.logger.Warn("leave announcement dropped", map[string]any{"error": err.Error()})
	}
	c.rec.finishRoom(RoomExit{Reason: ExitLeft})
	return nil
}

// InRoom reports whether a reconciled room session exists.
func (c *Coordinator) InRoom() bool {
	_, ok := c.rec.Room()
	return ok
}

func (c *Coordinator) setPhase(p roomPhase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// roomJoined starts the media session with the credentials delivered alongside
// the membership. Runs off the reconciliation path so a slow backend never
// stalls frame processing; on failure the room membership stands and the error
// surfaces through the error callback.
func (c *Coordinator) roomJoined(ev RoomJoined) {
	c.setPhase(phaseInRoom)
	go func() {
		if err := c.media.Connect(context.Background(), ev.Room.MediaURL, ev.Room.MediaToken); err != nil {
			c.logger.Error("media connect failed", map[string]any{
				"room_id": ev.Room.ID,
				"error":   err.Error(),
			})
			c.rec.events.fireError(WrapError(ErrorNoSession, "media connect failed", err))
			return
		}
		// The room may have been left while the connect was in flight; a
		// session without an owning room must not keep audio alive.
		if room, ok := c.rec.Room(); !ok || room.ID != ev.Room.ID {
			c.logger.Info("room gone before media connect settled, tearing down", map[string]any{"room_id": ev.Room.ID})
			if err := c.media.Disconnect(context.Background()); err != nil {
				c.logger.Warn("media disconnect", map[string]any{"error": err.Error()})
			}
		}
	}()
}

// roomExited tears the media session down after any end-of-room event. The
// cue player is already stopped by the reconciler.
func (c *Coordinator) roomExited(exit RoomExit) {
	c.setPhase(phaseIdle)
	go func() {
		if err := c.media.Disconnect(context.Background()); err != nil {
			c.logger.Warn("media disconnect", map[string]any{"error": err.Error()})
		}
	}()
}

// serverError clears a stuck joining phase when the server refuses the join.
func (c *Coordinator) serverError(err *VoiceChatError) {
	switch err.Code {
	case ErrorJoinFailed, ErrorTokenFailed, ErrorRoomNotFound:
		c.mu.Lock()
		if c.phase == phaseJoining {
			c.phase = phaseIdle
		}
		c.mu.Unlock()
	}
}

// signalState resets room state when the channel leaves the connected state.
// A reconnected channel is a new server-side identity; the server no longer
// counts us as a room member, so the local view must not either.
func (c *Coordinator) signalState(ev StateEvent) {
	if ev.OldState == StateConnected && ev.NewState != StateConnected {
		c.rec.ChannelReset()
	}
}
