package voicechat

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, msgType string, payload any) Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Frame{Type: msgType, Payload: data}
}

func joinedFrame(t *testing.T, roomID string) Frame {
	return frame(t, msgRoomJoined, roomJoinedPayload{
		RoomID:       roomID,
		RoomName:     "general",
		UserID:       "me",
		UserName:     "alice",
		LiveKitToken: "t",
		LiveKitURL:   "wss://media.example",
		Participants: []participantWire{},
	})
}

func chatFrame(t *testing.T, id, content string) Frame {
	return frame(t, msgChatMessage, chatMessagePayload{Message: chatMessageWire{
		ID:       id,
		Type:     "chat",
		SenderID: "u2",
		Content:  content,
	}})
}

func TestReconcilerRoomJoined(t *testing.T) {
	rec := NewReconciler(nil)

	var joined []RoomJoined
	rec.Events().SetOnRoomJoined(func(ev RoomJoined) { joined = append(joined, ev) })

	rec.Apply(joinedFrame(t, "r1"))

	room, ok := rec.Room()
	require.True(t, ok)
	assert.Equal(t, "r1", room.ID)
	assert.Equal(t, "t", room.MediaToken)
	assert.Equal(t, "wss://media.example", room.MediaURL)
	assert.Equal(t, "me", rec.UserID())
	assert.Empty(t, rec.Participants())
	require.Len(t, joined, 1)
	assert.Equal(t, "r1", joined[0].Room.ID)
}

func TestReconcilerDuplicateChatMessageAppliedOnce(t *testing.T) {
	rec := NewReconciler(nil)

	var delivered int
	rec.Events().SetOnChatMessage(func(ChatEntry) { delivered++ })

	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(chatFrame(t, "m1", "hello"))
	rec.Apply(chatFrame(t, "m1", "hello"))

	assert.Equal(t, 1, delivered)
	assert.Len(t, rec.Messages(), 1)
}

func TestReconcilerRoomChangeClearsDedupCache(t *testing.T) {
	rec := NewReconciler(nil)

	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(chatFrame(t, "m1", "in r1"))
	rec.Apply(joinedFrame(t, "r2"))

	assert.Empty(t, rec.Messages())

	// same id again: the cache was cleared with the room change
	rec.Apply(chatFrame(t, "m1", "in r2"))
	require.Len(t, rec.Messages(), 1)
	assert.Equal(t, "in r2", rec.Messages()[0].Content)
}

func TestReconcilerChatHistoryMerges(t *testing.T) {
	rec := NewReconciler(nil)
	var mergedCount int
	rec.Events().SetOnChatHistory(func(n int) { mergedCount = n })

	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(chatFrame(t, "m3", "live"))
	rec.Apply(frame(t, msgChatHistory, chatHistoryPayload{Messages: []chatMessageWire{
		{ID: "m1", Type: "chat", Content: "old"},
		{ID: "m2", Type: "chat", Content: "older"},
		{ID: "m3", Type: "chat", Content: "dup"},
	}}))

	assert.Equal(t, 2, mergedCount)
	msgs := rec.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "live", msgs[2].Content)
}

func TestReconcilerReactionSetIsAuthoritative(t *testing.T) {
	rec := NewReconciler(nil)
	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(chatFrame(t, "m1", "hi"))

	rec.Apply(frame(t, msgChatReaction, chatReactionPayload{
		MessageID: "m1", Emoji: "🔥", UserID: "u2", UserIDs: []string{"u2", "u3"},
	}))
	msgs := rec.Messages()
	require.Len(t, msgs[0].Reactions, 1)
	assert.Equal(t, []string{"u2", "u3"}, msgs[0].Reactions[0].UserIDs)

	rec.Apply(frame(t, msgChatReaction, chatReactionPayload{
		MessageID: "m1", Emoji: "🔥", UserID: "u2", UserIDs: nil,
	}))
	assert.Empty(t, rec.Messages()[0].Reactions)
}

func TestReconcilerMembershipEvents(t *testing.T) {
	rec := NewReconciler(nil)
	var joins, leaves int
	rec.Events().SetOnParticipantJoined(func(Participant) { joins++ })
	rec.Events().SetOnParticipantLeft(func(string) { leaves++ })

	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(frame(t, msgUserJoined, userJoinedPayload{UserID: "u2", UserName: "bob", RoomID: "r1"}))
	rec.Apply(frame(t, msgUserJoined, userJoinedPayload{UserID: "u2", UserName: "bob", RoomID: "r1"}))
	rec.Apply(frame(t, msgUserJoined, userJoinedPayload{UserID: "u9", UserName: "eve", RoomID: "other"}))

	assert.Equal(t, 1, joins)
	require.Len(t, rec.Participants(), 1)
	assert.Equal(t, defaultQuality, rec.Participants()[0].Quality)

	rec.Apply(frame(t, msgUserMuted, userMutedPayload{UserID: "u2", IsMuted: true}))
	p, _ := rec.Participant("u2")
	assert.True(t, p.Muted)

	rec.Apply(frame(t, msgUserLeft, userLeftPayload{UserID: "u2", RoomID: "r1"}))
	assert.Equal(t, 1, leaves)
	assert.Empty(t, rec.Participants())
}

func TestReconcilerKickClearsRoom(t *testing.T) {
	rec := NewReconciler(nil)
	var exit *RoomExit
	rec.Events().SetOnRoomExit(func(ev RoomExit) { exit = &ev })

	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(chatFrame(t, "m1", "hi"))
	rec.Apply(frame(t, msgUserKicked, userKickedPayload{Reason: "be nice"}))

	require.NotNil(t, exit)
	assert.Equal(t, ExitKicked, exit.Reason)
	assert.Equal(t, "be nice", exit.Message)
	_, ok := rec.Room()
	assert.False(t, ok)
	assert.Empty(t, rec.Messages())

	// a second end-of-room event must not fire again
	exit = nil
	rec.Apply(frame(t, msgRoomLeft, struct{}{}))
	assert.Nil(t, exit)
}

func TestReconcilerRoomClosedOnlyForActiveRoom(t *testing.T) {
	rec := NewReconciler(nil)
	var exits int
	rec.Events().SetOnRoomExit(func(RoomExit) { exits++ })

	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(frame(t, msgRoomClosed, roomClosedPayload{RoomID: "other"}))
	assert.Equal(t, 0, exits)

	rec.Apply(frame(t, msgRoomClosed, roomClosedPayload{RoomID: "r1"}))
	assert.Equal(t, 1, exits)
}

func TestReconcilerChannelReset(t *testing.T) {
	rec := NewReconciler(nil)
	var exit *RoomExit
	rec.Events().SetOnRoomExit(func(ev RoomExit) { exit = &ev })

	rec.Apply(joinedFrame(t, "r1"))
	rec.ChannelReset()

	require.NotNil(t, exit)
	assert.Equal(t, ExitChannelReset, exit.Reason)
	_, ok := rec.Room()
	assert.False(t, ok)

	// reset without a room is a no-op
	exit = nil
	rec.ChannelReset()
	assert.Nil(t, exit)
}

func TestReconcilerRoomList(t *testing.T) {
	rec := NewReconciler(nil)
	var listed []RoomSummary
	rec.Events().SetOnRoomList(func(rooms []RoomSummary) { listed = rooms })

	rec.Apply(frame(t, msgRoomList, roomListPayload{Rooms: []roomSummaryWire{
		{ID: "r1", Name: "general", ParticipantCount: 3, Capacity: 10},
		{ID: "r2", Name: "music", IsFull: true},
	}}))

	require.Len(t, listed, 2)
	assert.True(t, listed[1].Full)
	assert.Equal(t, listed, rec.Rooms())
}

func TestReconcilerServerError(t *testing.T) {
	rec := NewReconciler(nil)
	var got error
	rec.Events().SetOnError(func(err error) { got = err })

	rec.Apply(frame(t, msgError, ErrorPayload{Code: "ROOM_NOT_FOUND", Message: "no such room"}))

	require.Error(t, got)
	var ve *VoiceChatError
	require.ErrorAs(t, got, &ve)
	assert.Equal(t, ErrorRoomNotFound, ve.Code)
	assert.True(t, IsProtocolError(got))
}

func TestReconcilerIgnoresUnknownAndMalformed(t *testing.T) {
	rec := NewReconciler(nil)

	rec.Apply(Frame{Type: "future_thing", Payload: json.RawMessage(`{"x":1}`)})
	rec.Apply(Frame{Type: msgRoomJoined, Payload: json.RawMessage(`{broken`)})

	_, ok := rec.Room()
	assert.False(t, ok)
}

func TestReconcilerLogBoundSurvivesFlood(t *testing.T) {
	rec := NewReconciler(nil)
	rec.Apply(joinedFrame(t, "r1"))
	for i := 0; i < maxLogEntries*2; i++ {
		rec.Apply(chatFrame(t, fmt.Sprintf("m%d", i), "spam"))
	}
	assert.Equal(t, maxLogEntries, len(rec.Messages()))
}
