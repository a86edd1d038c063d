package voicechat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomJoinedNormalization(t *testing.T) {
	raw := `{
		"room_id": "r1",
		"room_name": "general",
		"user_id": "me",
		"user_name": "alice",
		"livekit_token": "t",
		"livekit_url": "wss://media.example",
		"participants": [
			{"id": "u2", "name": "bob", "is_muted": true, "is_admin": false}
		],
		"is_new_room": true
	}`
	var p roomJoinedPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	ev := p.toDomain()
	assert.Equal(t, "r1", ev.Room.ID)
	assert.Equal(t, "t", ev.Room.MediaToken)
	assert.Equal(t, "wss://media.example", ev.Room.MediaURL)
	assert.True(t, ev.NewRoom)
	require.Len(t, ev.Participants, 1)
	assert.Equal(t, "bob", ev.Participants[0].Name)
	assert.True(t, ev.Participants[0].Muted)
	assert.Equal(t, defaultQuality, ev.Participants[0].Quality)
}

func TestChatMessageNormalization(t *testing.T) {
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	w := chatMessageWire{
		ID:         "m1",
		RoomID:     "r1",
		Type:       "system",
		SenderName: "server",
		Content:    "alice joined",
		Timestamp:  ts,
		Reactions:  map[string][]string{"👍": {"u2"}},
	}

	e := w.toDomain()
	assert.True(t, e.System)
	assert.Equal(t, ts, e.Timestamp)
	require.Len(t, e.Reactions, 1)
	assert.Equal(t, "👍", e.Reactions[0].Emoji)
	assert.Equal(t, []string{"u2"}, e.Reactions[0].UserIDs)
}

func TestFrameRoundTrip(t *testing.T) {
	data, err := json.Marshal(Frame{Type: msgJoinRoom, Payload: json.RawMessage(`{"room_name":"general"}`)})
	require.NoError(t, err)

	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, msgJoinRoom, f.Type)

	var req joinRoomRequest
	require.NoError(t, UnmarshalPayload(f.Payload, &req))
	assert.Equal(t, "general", req.RoomName)
}

func TestErrorCodeParsing(t *testing.T) {
	assert.Equal(t, ErrorRoomNotFound, ParseErrorCode("ROOM_NOT_FOUND"))
	assert.Equal(t, ErrorJoinFailed, ParseErrorCode("JOIN_FAILED"))
	assert.Equal(t, ErrorUnknown, ParseErrorCode("SOMETHING_NEW"))

	err := FromProtocolError(&ErrorPayload{Code: "NOT_IN_ROOM", Message: "join first"})
	assert.Equal(t, ErrorNotInRoom, err.Code)
	assert.True(t, IsProtocolError(err))
	assert.False(t, IsConnectionError(err))
}
