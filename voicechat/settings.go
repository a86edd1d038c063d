package voicechat

import (
	"encoding/json"
	"sync"
)

// storageKeyPrefix namespaces every persisted key so the SDK can share a
// key-value store with the host application.
const storageKeyPrefix = "voice_chat_"

const settingsKey = storageKeyPrefix + "settings"

// Storage is the host-provided key-value store for persisted settings. An
// in-memory implementation is used when the host supplies none.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is a process-local Storage, safe for concurrent use.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Settings are the device and volume preferences persisted across sessions
// and re-applied opportunistically when a media session comes up.
type Settings struct {
	UserName       string         `json:"user_name,omitempty"`
	InputDeviceID  string         `json:"input_device_id,omitempty"`
	OutputDeviceID string         `json:"output_device_id,omitempty"`
	MasterVolume   int            `json:"master_volume"`
	SpeakerVolume  int            `json:"speaker_volume"`
	MicrophoneGain int            `json:"microphone_gain"`
	UserVolumes    map[string]int `json:"user_volumes,omitempty"`
	Muted          bool           `json:"muted"`
}

// DefaultSettings returns unity volumes and gain.
func DefaultSettings() Settings {
	return Settings{
		MasterVolume:   100,
		SpeakerVolume:  100,
		MicrophoneGain: 100,
	}
}

// SettingsStore reads and writes Settings through a Storage as one JSON blob.
type SettingsStore struct {
	storage Storage
	logger  Logger
}

func NewSettingsStore(storage Storage, logger Logger) *SettingsStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &SettingsStore{storage: storage, logger: logger}
}

// Load returns the persisted settings. Missing or corrupt data falls back to
// defaults rather than failing the caller.
func (s *SettingsStore) Load() Settings {
	raw, ok := s.storage.Get(settingsKey)
	if !ok {
		return DefaultSettings()
	}
	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.Warn("corrupt persisted settings, using defaults", map[string]any{"error": err.Error()})
		return DefaultSettings()
	}
	return settings
}

// Save persists the settings.
func (s *SettingsStore) Save(settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return WrapError(ErrorSerialization, "marshal settings", err)
	}
	return s.storage.Set(settingsKey, string(data))
}

// Reset removes the persisted settings.
func (s *SettingsStore) Reset() error {
	return s.storage.Delete(settingsKey)
}
