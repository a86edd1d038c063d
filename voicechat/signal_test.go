package voicechat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelaySchedule(t *testing.T) {
	base := time.Second
	max := 5 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{5, 5 * time.Second},
		{20, 5 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, backoffDelay(base, max, tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestSignalChannelSendRequiresConnection(t *testing.T) {
	s := NewSignalChannel(DefaultConfig(), nil)

	err := s.Send(msgGetRooms, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, NewError(ErrorNotConnected, ""))
}

func TestSignalChannelConnectRejectsEmptyURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = ""
	s := NewSignalChannel(cfg, nil)

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, NewError(ErrorInvalidConfig, ""))
}

func TestSignalChannelStateObserver(t *testing.T) {
	s := NewSignalChannel(DefaultConfig(), nil)

	var events []StateEvent
	unsubscribe := s.OnStateChange(func(ev StateEvent) { events = append(events, ev) })

	// registration notifies the current state immediately
	require.Len(t, events, 1)
	assert.Equal(t, StateDisconnected, events[0].NewState)

	s.setState(StateConnecting, nil)
	s.setState(StateConnecting, nil) // no-change transitions are suppressed
	s.setState(StateError, NewError(ErrorConnection, "boom"))

	require.Len(t, events, 3)
	assert.Equal(t, StateConnecting, events[1].NewState)
	assert.Equal(t, StateError, events[2].NewState)
	assert.Error(t, events[2].Error)

	unsubscribe()
	s.setState(StateDisconnected, nil)
	assert.Len(t, events, 3)
}

func TestSignalChannelDisconnectWithoutConnection(t *testing.T) {
	s := NewSignalChannel(DefaultConfig(), nil)
	assert.NoError(t, s.Disconnect())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestConnectionStateStrings(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "error", StateError.String())
}
