package voicechat

import (
	"encoding/json"
	"time"
)

// Message type constants for the signaling wire protocol. Client-to-server
// types carry requests; server-to-client types carry events and responses.
const (
	// client -> server
	msgJoinRoom       = "join_room"
	msgLeaveRoom      = "leave_room"
	msgGetRooms       = "get_rooms"
	msgGetRoom        = "get_room"
	msgMuteSelf       = "mute_self"
	msgChatMessage    = "chat_message"
	msgReactionAdd    = "chat_reaction_add"
	msgReactionRemove = "chat_reaction_remove"
	msgPing           = "ping"
	msgPong           = "pong"

	// server -> client
	msgConnected    = "connected"
	msgRoomJoined   = "room_joined"
	msgRoomLeft     = "room_left"
	msgRoomList     = "room_list"
	msgRoomInfo     = "room_info"
	msgUserJoined   = "user_joined"
	msgUserLeft     = "user_left"
	msgUserMuted    = "user_muted"
	msgUserKicked   = "user_kicked"
	msgUserBanned   = "user_banned"
	msgRoomClosed   = "room_closed"
	msgChatHistory  = "chat_history"
	msgChatReaction = "chat_reaction"
	msgPlayTestTone = "play_test_tone"
	msgStopTestTone = "stop_test_tone"
	msgError        = "error"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> server payloads. The wire uses snake_case field names.

type joinRoomRequest struct {
	RoomName  string `json:"room_name"`
	UserName  string `json:"user_name"`
	VoiceMode string `json:"voice_mode"`
}

type getRoomRequest struct {
	RoomName string `json:"room_name"`
}

type muteSelfRequest struct {
	Muted bool `json:"muted"`
}

type chatMessageRequest struct {
	Content string `json:"content"`
}

type chatReactionRequest struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Server -> client payloads.

type connectedPayload struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type participantWire struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsMuted bool   `json:"is_muted"`
	IsAdmin bool   `json:"is_admin"`
}

type roomJoinedPayload struct {
	RoomID       string            `json:"room_id"`
	RoomName     string            `json:"room_name"`
	UserID       string            `json:"user_id"`
	UserName     string            `json:"user_name"`
	LiveKitToken string            `json:"livekit_token"`
	LiveKitURL   string            `json:"livekit_url"`
	Participants []participantWire `json:"participants"`
	IsNewRoom    bool              `json:"is_new_room"`
}

type roomSummaryWire struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	ParticipantCount int    `json:"participant_count"`
	Capacity         int    `json:"capacity"`
	IsFull           bool   `json:"is_full"`
}

type roomListPayload struct {
	Rooms []roomSummaryWire `json:"rooms"`
}

type roomInfoPayload struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Capacity     int               `json:"capacity"`
	Participants []participantWire `json:"participants"`
	CanJoin      bool              `json:"can_join"`
	IsClosed     bool              `json:"is_closed"`
}

type userJoinedPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	RoomID   string `json:"room_id"`
}

type userLeftPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	RoomID   string `json:"room_id"`
}

type userMutedPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsMuted  bool   `json:"is_muted"`
}

type userKickedPayload struct {
	Reason string `json:"reason"`
}

type userBannedPayload struct {
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

type roomClosedPayload struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
}

type chatMessageWire struct {
	ID         string              `json:"id"`
	RoomID     string              `json:"room_id"`
	Type       string              `json:"type"` // "chat" or "system"
	SenderID   string              `json:"sender_id"`
	SenderName string              `json:"sender_name"`
	Content    string              `json:"content"`
	Timestamp  time.Time           `json:"timestamp"`
	Reactions  map[string][]string `json:"reactions"`
}

type chatMessagePayload struct {
	Message chatMessageWire `json:"message"`
}

type chatHistoryPayload struct {
	Messages []chatMessageWire `json:"messages"`
}

type chatReactionPayload struct {
	MessageID string   `json:"message_id"`
	Emoji     string   `json:"emoji"`
	UserID    string   `json:"user_id"`
	UserIDs   []string `json:"user_ids"`
}

// ErrorPayload describes a server-sent error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorPayload) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

// Normalization: wire payloads translate to internal domain types at the
// boundary. Pure mappings, no side effects.

func (p participantWire) toDomain() Participant {
	return Participant{
		ID:      p.ID,
		Name:    p.Name,
		Muted:   p.IsMuted,
		Admin:   p.IsAdmin,
		Quality: defaultQuality,
	}
}

func (p roomJoinedPayload) toDomain() RoomJoined {
	participants := make([]Participant, len(p.Participants))
	for i, w := range p.Participants {
		participants[i] = w.toDomain()
	}
	return RoomJoined{
		Room: RoomSession{
			ID:         p.RoomID,
			Name:       p.RoomName,
			UserID:     p.UserID,
			UserName:   p.UserName,
			MediaURL:   p.LiveKitURL,
			MediaToken: p.LiveKitToken,
		},
		Participants: participants,
		NewRoom:      p.IsNewRoom,
	}
}

func (w roomSummaryWire) toDomain() RoomSummary {
	return RoomSummary{
		ID:               w.ID,
		Name:             w.Name,
		Type:             w.Type,
		ParticipantCount: w.ParticipantCount,
		Capacity:         w.Capacity,
		Full:             w.IsFull,
	}
}

func (p roomInfoPayload) toDomain() RoomInfo {
	participants := make([]Participant, len(p.Participants))
	for i, w := range p.Participants {
		participants[i] = w.toDomain()
	}
	return RoomInfo{
		ID:           p.ID,
		Name:         p.Name,
		Type:         p.Type,
		Capacity:     p.Capacity,
		Participants: participants,
		CanJoin:      p.CanJoin,
		Closed:       p.IsClosed,
	}
}

func (w chatMessageWire) toDomain() ChatEntry {
	reactions := make([]Reaction, 0, len(w.Reactions))
	for emoji, userIDs := range w.Reactions {
		reactions = append(reactions, Reaction{Emoji: emoji, UserIDs: append([]string(nil), userIDs...)})
	}
	return ChatEntry{
		ID:         w.ID,
		System:     w.Type == "system",
		SenderID:   w.SenderID,
		SenderName: w.SenderName,
		Content:    w.Content,
		Timestamp:  w.Timestamp,
		Reactions:  reactions,
	}
}

// UnmarshalPayload decodes a frame payload into target.
func UnmarshalPayload(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}
