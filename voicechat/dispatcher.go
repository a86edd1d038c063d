package voicechat

// Dispatcher routes reconciled events to registered callbacks. Callbacks are
// invoked synchronously in reconciliation order.
type Dispatcher struct {
	onConnected         func(userID string)
	onRoomJoined        func(RoomJoined)
	onRoomExit          func(RoomExit)
	onRoomList          func([]RoomSummary)
	onRoomInfo          func(RoomInfo)
	onParticipantJoined func(Participant)
	onParticipantLeft   func(participantID string)
	onParticipantMuted  func(participantID string, muted bool)
	onChatMessage       func(ChatEntry)
	onChatHistory       func(count int)
	onReaction          func(messageID, emoji string, userIDs []string)
	onError             func(error)
}

func (d *Dispatcher) SetOnConnected(fn func(userID string)) { d.onConnected = fn }

func (d *Dispatcher) SetOnRoomJoined(fn func(RoomJoined)) { d.onRoomJoined = fn }

func (d *Dispatcher) SetOnRoomExit(fn func(RoomExit)) { d.onRoomExit = fn }

func (d *Dispatcher) SetOnRoomList(fn func([]RoomSummary)) { d.onRoomList = fn }

func (d *Dispatcher) SetOnRoomInfo(fn func(RoomInfo)) { d.onRoomInfo = fn }

func (d *Dispatcher) SetOnParticipantJoined(fn func(Participant)) { d.onParticipantJoined = fn }

func (d *Dispatcher) SetOnParticipantLeft(fn func(string)) { d.onParticipantLeft = fn }

func (d *Dispatcher) SetOnParticipantMuted(fn func(string, bool)) { d.onParticipantMuted = fn }

func (d *Dispatcher) SetOnChatMessage(fn func(ChatEntry)) { d.onChatMessage = fn }

func (d *Dispatcher) SetOnChatHistory(fn func(count int)) { d.onChatHistory = fn }

func (d *Dispatcher) SetOnReaction(fn func(string, string, []string)) { d.onReaction = fn }

func (d *Dispatcher) SetOnError(fn func(error)) { d.onError = fn }

func (d *Dispatcher) fireConnected(userID string) {
	if d.onConnected != nil {
		d.onConnected(userID)
	}
}

func (d *Dispatcher) fireRoomJoined(ev RoomJoined) {
	if d.onRoomJoined != nil {
		d.onRoomJoined(ev)
	}
}

func (d *Dispatcher) fireRoomExit(ev RoomExit) {
	if d.onRoomExit != nil {
		d.onRoomExit(ev)
	}
}

func (d *Dispatcher) fireRoomList(rooms []RoomSummary) {
	if d.onRoomList != nil {
		d.onRoomList(rooms)
	}
}

func (d *Dispatcher) fireRoomInfo(info RoomInfo) {
	if d.onRoomInfo != nil {
		d.onRoomInfo(info)
	}
}

func (d *Dispatcher) fireParticipantJoined(p Participant) {
	if d.onParticipantJoined != nil {
		d.onParticipantJoined(p)
	}
}

func (d *Dispatcher) fireParticipantLeft(id string) {
	if d.onParticipantLeft != nil {
		d.onParticipantLeft(id)
	}
}

func (d *Dispatcher) fireParticipantMuted(id string, muted bool) {
	if d.onParticipantMuted != nil {
		d.onParticipantMuted(id, muted)
	}
}

func (d *Dispatcher) fireChatMessage(entry ChatEntry) {
	if d.onChatMessage != nil {
		d.onChatMessage(entry)
	}
}

func (d *Dispatcher) fireChatHistory(count int) {
	if d.onChatHistory != nil {
		d.onChatHistory(count)
	}
}

func (d *Dispatcher) fireReaction(messageID, emoji string, userIDs []string) {
	if d.onReaction != nil {
		d.onReaction(messageID, emoji, userIDs)
	}
}

func (d *Dispatcher) fireError(err error) {
	if d.onError != nil && err != nil {
		d.onError(err)
	}
}
