package voicechat

import (
	"sync"
)

// Reconciler owns the client-side view of the server: active room, roster,
// chat log and lobby list. Every mutation enters through Apply (server frames)
// or the media-event setters, so there is a single writer path and snapshots
// are always internally consistent.
type Reconciler struct {
	mu     sync.Mutex
	logger Logger
	events Dispatcher
	cue    CuePlayer

	userID string
	room   *RoomSession
	roster *Roster
	log    *ChatLog
	seen   *seenIDs
	rooms  []RoomSummary

	// internal hooks for the coordinator, fired after user callbacks
	hookRoomJoined func(RoomJoined)
	hookRoomExit   func(RoomExit)
	hookError      func(*VoiceChatError)
}

// NewReconciler returns an empty reconciler.
func NewReconciler(logger Logger) *Reconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Reconciler{
		logger: logger,
		cue:    noopCue{},
		roster: NewRoster(),
		log:    NewChatLog(),
		seen:   newSeenIDs(maxSeenIDs),
	}
}

// Events exposes the callback registry.
func (r *Reconciler) Events() *Dispatcher { return &r.events }

// SetCuePlayer installs the audio cue collaborator used for test tone frames.
func (r *Reconciler) SetCuePlayer(cue CuePlayer) {
	if cue == nil {
		cue = noopCue{}
	}
	r.mu.Lock()
	r.cue = cue
	r.mu.Unlock()
}

// Apply reconciles one server frame into state, then notifies callbacks.
// Unknown frame types are logged and dropped.
func (r *Reconciler) Apply(frame Frame) {
	switch frame.Type {
	case msgConnected:
		var p connectedPayload
		if !r.decode(frame, &p) {
			return
		}
		r.mu.Lock()
		r.userID = p.UserID
		r.mu.Unlock()
		r.events.fireConnected(p.UserID)

	case msgRoomJoined:
		var p roomJoinedPayload
		if !r.decode(frame, &p) {
			return
		}
		ev := p.toDomain()
		r.mu.Lock()
		if r.room == nil || r.room.ID != ev.Room.ID {
			r.log.Clear()
			r.seen.Clear()
		}
		room := ev.Room
		r.room = &room
		r.userID = ev.Room.UserID
		r.roster.Replace(ev.Participants)
		hook := r.hookRoomJoined
		r.mu.Unlock()
		r.logger.Info("room joined", map[string]any{
			"room_id":      ev.Room.ID,
			"room_name":    ev.Room.Name,
			"participants": len(ev.Participants),
			"new_room":     ev.NewRoom,
		})
		r.events.fireRoomJoined(ev)
		if hook != nil {
			hook(ev)
		}

	case msgRoomLeft:
		r.finishRoom(RoomExit{Reason: ExitLeft})

	case msgUserKicked:
		var p userKickedPayload
		if !r.decode(frame, &p) {
			return
		}
		r.finishRoom(RoomExit{Reason: ExitKicked, Message: p.Reason})

	case msgUserBanned:
		var p userBannedPayload
		if !r.decode(frame, &p) {
			return
		}
		r.finishRoom(RoomExit{Reason: ExitBanned, Message: p.Reason})

	case msgRoomClosed:
		var p roomClosedPayload
		if !r.decode(frame, &p) {
			return
		}
		r.mu.Lock()
		active := r.room != nil && r.room.ID == p.RoomID
		r.mu.Unlock()
		if !active {
			return
		}
		r.finishRoom(RoomExit{Reason: ExitRoomClosed, Message: p.RoomName})

	case msgRoomList:
		var p roomListPayload
		if !r.decode(frame, &p) {
			return
		}
		rooms := make([]RoomSummary, len(p.Rooms))
		for i, w := range p.Rooms {
			rooms[i] = w.toDomain()
		}
		r.mu.Lock()
		r.rooms = rooms
		r.mu.Unlock()
		r.events.fireRoomList(append([]RoomSummary(nil), rooms...))

	case msgRoomInfo:
		var p roomInfoPayload
		if !r.decode(frame, &p) {
			return
		}
		r.events.fireRoomInfo(p.toDomain())

	case msgUserJoined:
		var p userJoinedPayload
		if !r.decode(frame, &p) {
			return
		}
		participant := Participant{ID: p.UserID, Name: p.UserName, Quality: defaultQuality}
		r.mu.Lock()
		inRoom := r.room != nil && r.room.ID == p.RoomID
		added := inRoom && r.roster.Add(participant)
		r.mu.Unlock()
		if !added {
			if inRoom {
				r.logger.Debug("duplicate user_joined dropped", map[string]any{"user_id": p.UserID})
			}
			return
		}
		r.events.fireParticipantJoined(participant)

	case msgUserLeft:
		var p userLeftPayload
		if !r.decode(frame, &p) {
			return
		}
		r.mu.Lock()
		removed := r.roster.Remove(p.UserID)
		r.mu.Unlock()
		if removed {
			r.events.fireParticipantLeft(p.UserID)
		}

	case msgUserMuted:
		var p userMutedPayload
		if !r.decode(frame, &p) {
			return
		}
		r.mu.Lock()
		changed := r.roster.SetMuted(p.UserID, p.IsMuted)
		r.mu.Unlock()
		if changed {
			r.events.fireParticipantMuted(p.UserID, p.IsMuted)
		}

	case msgChatMessage:
		var p chatMessagePayload
		if !r.decode(frame, &p) {
			return
		}
		entry := p.Message.toDomain()
		r.mu.Lock()
		if r.seen.Seen(entry.ID) {
			r.mu.Unlock()
			r.logger.Debug("duplicate chat message dropped", map[string]any{"message_id": entry.ID})
			return
		}
		appended := r.log.Append(entry)
		r.mu.Unlock()
		if appended {
			r.events.fireChatMessage(entry)
		}

	case msgChatHistory:
		var p chatHistoryPayload
		if !r.decode(frame, &p) {
			return
		}
		history := make([]ChatEntry, len(p.Messages))
		for i, w := range p.Messages {
			history[i] = w.toDomain()
		}
		r.mu.Lock()
		for _, entry := range history {
			r.seen.Seen(entry.ID)
		}
		merged := r.log.Merge(history)
		r.mu.Unlock()
		if merged > 0 {
			r.events.fireChatHistory(merged)
		}

	case msgChatReaction:
		var p chatReactionPayload
		if !r.decode(frame, &p) {
			return
		}
		r.mu.Lock()
		found := r.log.SetReaction(p.MessageID, p.Emoji, p.UserIDs)
		r.mu.Unlock()
		if found {
			r.events.fireReaction(p.MessageID, p.Emoji, append([]string(nil), p.UserIDs...))
		}

	case msgPlayTestTone:
		r.mu.Lock()
		cue := r.cue
		r.mu.Unlock()
		cue.Start()

	case msgStopTestTone:
		r.mu.Lock()
		cue := r.cue
		r.mu.Unlock()
		cue.Stop()

	case msgError:
		var p ErrorPayload
		if !r.decode(frame, &p) {
			return
		}
		err := FromProtocolError(&p)
		r.logger.Warn("server error", map[string]any{"code": p.Code, "message": p.Message})
		r.mu.Lock()
		hook := r.hookError
		r.mu.Unlock()
		r.events.fireError(err)
		if hook != nil {
			hook(err)
		}

	default:
		r.logger.Debug("unknown frame dropped", map[string]any{"type": frame.Type})
	}
}

// ChannelReset discards the active room after the signaling channel was lost
// or replaced. The server no longer counts us as a member, so the local view
// must not pretend otherwise.
func (r *Reconciler) ChannelReset() {
	r.finishRoom(RoomExit{Reason: ExitChannelReset})
}

// SetSpeaking applies a media-side speaking change to the roster.
func (r *Reconciler) SetSpeaking(participantID string, speaking bool) {
	r.mu.Lock()
	r.roster.SetSpeaking(participantID, speaking)
	r.mu.Unlock()
}

// SetQuality applies a media-side quality change to the roster.
func (r *Reconciler) SetQuality(participantID string, quality int) {
	r.mu.Lock()
	r.roster.SetQuality(participantID, quality)
	r.mu.Unlock()
}

// finishRoom clears the active room and notifies, once per room.
func (r *Reconciler) finishRoom(exit RoomExit) {
	r.mu.Lock()
	if r.room == nil {
		r.mu.Unlock()
		return
	}
	roomID := r.room.ID
	r.room = nil
	r.roster.Clear()
	r.log.Clear()
	r.seen.Clear()
	cue := r.cue
	hook := r.hookRoomExit
	r.mu.Unlock()
	cue.Stop()
	r.logger.Info("room exited", map[string]any{"room_id": roomID, "reason": exit.Reason.String()})
	r.events.fireRoomExit(exit)
	if hook != nil {
		hook(exit)
	}
}

func (r *Reconciler) decode(frame Frame, v any) bool {
	if err := UnmarshalPayload(frame.Payload, v); err != nil {
		r.logger.Warn("malformed payload dropped", map[string]any{
			"type":  frame.Type,
			"error": err.Error(),
		})
		return false
	}
	return true
}

// UserID returns the identity assigned by the connected frame.
func (r *Reconciler) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// Room returns the active room session, if any.
func (r *Reconciler) Room() (RoomSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.room == nil {
		return RoomSession{}, false
	}
	return *r.room, true
}

// Participants returns the roster of the active room in join order.
func (r *Reconciler) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster.List()
}

// Participant returns one roster entry by id.
func (r *Reconciler) Participant(id string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster.Get(id)
}

// Messages returns the chat log, oldest first.
func (r *Reconciler) Messages() []ChatEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Entries()
}

// Rooms returns the last received lobby list.
func (r *Reconciler) Rooms() []RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RoomSummary(nil), r.rooms...)
}
