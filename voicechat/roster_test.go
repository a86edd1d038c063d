package voicechat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterAddRejectsDuplicates(t *testing.T) {
	r := NewRoster()

	require.True(t, r.Add(Participant{ID: "u1", Name: "alice"}))
	require.False(t, r.Add(Participant{ID: "u1", Name: "impostor"}))

	assert.Equal(t, 1, r.Len())
	p, ok := r.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "alice", p.Name)
}

func TestRosterPreservesInsertionOrder(t *testing.T) {
	r := NewRoster()
	r.Add(Participant{ID: "u1"})
	r.Add(Participant{ID: "u2"})
	r.Add(Participant{ID: "u3"})
	require.True(t, r.Remove("u2"))
	r.Add(Participant{ID: "u4"})

	var ids []string
	for _, p := range r.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"u1", "u3", "u4"}, ids)
}

func TestRosterReplace(t *testing.T) {
	r := NewRoster()
	r.Add(Participant{ID: "old"})

	r.Replace([]Participant{{ID: "u1"}, {ID: "u2"}})

	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("old")
	assert.False(t, ok)
}

func TestRosterFlagUpdates(t *testing.T) {
	r := NewRoster()
	r.Add(Participant{ID: "u1", Quality: defaultQuality})

	require.True(t, r.SetMuted("u1", true))
	require.True(t, r.SetSpeaking("u1", true))
	require.True(t, r.SetQuality("u1", 50))

	p, _ := r.Get("u1")
	assert.True(t, p.Muted)
	assert.True(t, p.Speaking)
	assert.Equal(t, 50, p.Quality)

	assert.False(t, r.SetMuted("ghost", true))
	assert.False(t, r.SetSpeaking("ghost", true))
	assert.False(t, r.SetQuality("ghost", 0))
}
