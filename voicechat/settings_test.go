package voicechat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsStoreRoundTrip(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewSettingsStore(storage, nil)

	s := DefaultSettings()
	s.UserName = "alice"
	s.InputDeviceID = "mic1"
	s.MasterVolume = 40
	s.MicrophoneGain = 150
	s.UserVolumes = map[string]int{"u2": 20}
	s.Muted = true
	require.NoError(t, store.Save(s))

	loaded := store.Load()
	assert.Equal(t, s, loaded)

	// everything lands under the namespaced key
	_, ok := storage.Get("voice_chat_settings")
	assert.True(t, ok)
}

func TestSettingsStoreDefaultsWhenMissing(t *testing.T) {
	store := NewSettingsStore(NewMemoryStorage(), nil)
	assert.Equal(t, DefaultSettings(), store.Load())
}

func TestSettingsStoreDefaultsWhenCorrupt(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(settingsKey, "{not json"))

	store := NewSettingsStore(storage, nil)
	assert.Equal(t, DefaultSettings(), store.Load())
}

func TestSettingsStoreReset(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewSettingsStore(storage, nil)
	require.NoError(t, store.Save(Settings{MasterVolume: 10}))
	require.NoError(t, store.Reset())

	_, ok := storage.Get(settingsKey)
	assert.False(t, ok)
}
