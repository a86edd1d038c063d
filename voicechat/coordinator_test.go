package voicechat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *Reconciler, *fakeBackend) {
	t.Helper()
	cfg := mediaTestConfig()
	cfg.URL = "ws://signal.example/ws"
	backend := &fakeBackend{}
	signal := NewSignalChannel(cfg, nil)
	media := NewMediaConnector(backend, cfg, nil)
	rec := NewReconciler(nil)
	coord := NewCoordinator(signal, media, rec, cfg, nil)
	return coord, rec, backend
}

func TestCoordinatorRoomJoinedStartsMedia(t *testing.T) {
	coord, rec, backend := newTestCoordinator(t)

	rec.Apply(joinedFrame(t, "r1"))

	assert.Eventually(t, func() bool { return backend.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, coord.InRoom())
}

func TestCoordinatorRoomExitStopsMedia(t *testing.T) {
	coord, rec, backend := newTestCoordinator(t)

	rec.Apply(joinedFrame(t, "r1"))
	require.Eventually(t, func() bool { return backend.count() == 1 }, time.Second, 10*time.Millisecond)

	rec.Apply(frame(t, msgUserKicked, userKickedPayload{Reason: "bye"}))

	assert.Eventually(t, func() bool { return backend.session(0).isClosed() }, time.Second, 10*time.Millisecond)
	assert.False(t, coord.InRoom())
}

func TestCoordinatorMediaFailureKeepsRoom(t *testing.T) {
	coord, rec, backend := newTestCoordinator(t)
	backend.err = NewError(ErrorMicPermission, "denied")

	var got error
	rec.Events().SetOnError(func(err error) { got = err })

	rec.Apply(joinedFrame(t, "r1"))

	assert.Eventually(t, func() bool { return got != nil }, time.Second, 10*time.Millisecond)
	assert.True(t, coord.InRoom(), "signaling membership must survive a media failure")
}

func TestCoordinatorChannelLossResetsRoom(t *testing.T) {
	coord, rec, backend := newTestCoordinator(t)

	rec.Apply(joinedFrame(t, "r1"))
	require.Eventually(t, func() bool { return backend.count() == 1 }, time.Second, 10*time.Millisecond)

	var exit *RoomExit
	rec.Events().SetOnRoomExit(func(ev RoomExit) { exit = &ev })

	coord.signalState(StateEvent{OldState: StateConnected, NewState: StateReconnecting})

	require.NotNil(t, exit)
	assert.Equal(t, ExitChannelReset, exit.Reason)
	assert.False(t, coord.InRoom())
	assert.Eventually(t, func() bool { return backend.session(0).isClosed() }, time.Second, 10*time.Millisecond)
}

func TestCoordinatorJoinRequiresConnection(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	err := coord.JoinRoom("general", "alice", "open")
	require.Error(t, err)
	assert.ErrorIs(t, err, NewError(ErrorNotConnected, ""))

	// a failed send must not leave the coordinator stuck in joining
	err = coord.JoinRoom("general", "alice", "open")
	assert.ErrorIs(t, err, NewError(ErrorNotConnected, ""))
}

func TestCoordinatorLeaveWithoutRoomIsNoOp(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	assert.NoError(t, coord.LeaveRoom())
}

func TestCoordinatorLeaveTearsDownLocally(t *testing.T) {
	coord, rec, backend := newTestCoordinator(t)

	rec.Apply(joinedFrame(t, "r1"))
	require.Eventually(t, func() bool { return backend.count() == 1 }, time.Second, 10*time.Millisecond)

	var exit *RoomExit
	rec.Events().SetOnRoomExit(func(ev RoomExit) { exit = &ev })

	// the channel is down, but leave still clears media and local state
	require.NoError(t, coord.LeaveRoom())

	require.NotNil(t, exit)
	assert.Equal(t, ExitLeft, exit.Reason)
	assert.False(t, coord.InRoom())
	assert.True(t, backend.session(0).isClosed())

	// a late room_left echo from the server finds nothing to do
	exit = nil
	rec.Apply(frame(t, msgRoomLeft, struct{}{}))
	assert.Nil(t, exit)
}

func TestCoordinatorLeaveRacingMediaConnectLeavesNoSession(t *testing.T) {
	coord, rec, _ := newTestCoordinator(t)

	// the leave lands before the media connect goroutine gets scheduled;
	// whatever session it builds afterwards must not survive ownerless
	for i := 0; i < 50; i++ {
		rec.Apply(joinedFrame(t, "r1"))
		require.NoError(t, coord.LeaveRoom())

		assert.Eventually(t, func() bool {
			return !coord.media.Connected()
		}, time.Second, time.Millisecond, "round %d left a session without a room", i)
		assert.False(t, coord.InRoom())
	}
}

func TestCoordinatorJoinRefusedClearsJoiningPhase(t *testing.T) {
	coord, rec, _ := newTestCoordinator(t)

	coord.setPhase(phaseJoining)
	rec.Apply(frame(t, msgError, ErrorPayload{Code: "JOIN_FAILED", Message: "room is full"}))

	coord.mu.Lock()
	phase := coord.phase
	coord.mu.Unlock()
	assert.Equal(t, phaseIdle, phase)
}

type recordingCue struct {
	started int
	stopped int
}

func (c *recordingCue) Start()        { c.started++ }
func (c *recordingCue) Stop()         { c.stopped++ }
func (c *recordingCue) Playing() bool { return c.started > c.stopped }

func TestReconcilerTestToneDrivesCue(t *testing.T) {
	rec := NewReconciler(nil)
	cue := &recordingCue{}
	rec.SetCuePlayer(cue)

	rec.Apply(Frame{Type: msgPlayTestTone})
	assert.Equal(t, 1, cue.started)

	rec.Apply(Frame{Type: msgStopTestTone})
	assert.Equal(t, 1, cue.stopped)

	// leaving a room always stops the cue
	rec.Apply(joinedFrame(t, "r1"))
	rec.Apply(Frame{Type: msgPlayTestTone})
	rec.Apply(frame(t, msgRoomLeft, struct{}{}))
	assert.False(t, cue.Playing())
}
