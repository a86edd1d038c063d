package voicechat

import "time"

// defaultQuality is assumed for a participant until the media backend
// reports otherwise.
const defaultQuality = 75

// Participant is a member of the active room. Flags are mutated only by
// reconciled membership events, never guessed locally.
type Participant struct {
	ID       string
	Name     string
	Muted    bool
	Admin    bool
	Speaking bool
	Quality  int // coarse scale: 0, 50, 75, 100
}

// RoomSession identifies the joined room together with the media credentials
// delivered in the room_joined frame.
type RoomSession struct {
	ID         string
	Name       string
	UserID     string
	UserName   string
	MediaURL   string
	MediaToken string
}

// RoomJoined is the normalized room_joined event.
type RoomJoined struct {
	Room         RoomSession
	Participants []Participant
	NewRoom      bool
}

// RoomSummary is one entry of the lobby room list.
type RoomSummary struct {
	ID               string
	Name             string
	Type             string
	ParticipantCount int
	Capacity         int
	Full             bool
}

// RoomInfo is the preview of a single room.
type RoomInfo struct {
	ID           string
	Name         string
	Type         string
	Capacity     int
	Participants []Participant
	CanJoin      bool
	Closed       bool
}

// Reaction is the reactor set for one emoji on one message.
type Reaction struct {
	Emoji   string
	UserIDs []string
}

// ChatEntry is one chat or system entry of the message log.
type ChatEntry struct {
	ID         string
	System     bool
	SenderID   string
	SenderName string
	Content    string
	Timestamp  time.Time
	Reactions  []Reaction
}

// RoomExitReason says why the active room ended.
type RoomExitReason int

const (
	ExitLeft RoomExitReason = iota
	ExitKicked
	ExitBanned
	ExitRoomClosed
	ExitChannelReset
)

func (r RoomExitReason) String() string {
	switch r {
	case ExitLeft:
		return "left"
	case ExitKicked:
		return "kicked"
	case ExitBanned:
		return "banned"
	case ExitRoomClosed:
		return "room_closed"
	case ExitChannelReset:
		return "channel_reset"
	default:
		return "unknown"
	}
}

// RoomExit is the normalized end-of-room event.
type RoomExit struct {
	Reason  RoomExitReason
	Message string // user-facing detail (kick/ban reason)
}
