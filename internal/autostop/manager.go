package autostop

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Persisted-key names. Kept stable across releases: changing them silently
// resets every user to the default preset.
const (
	configurationKey = "autoStopConfiguration"
	learningModeKey  = "autoStopLearningMode"
)

// Store is the persistence surface the manager needs.
type Store interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value json.RawMessage) error
}

// Manager is the single writer of the process-wide auto-stop configuration.
// Sessions snapshot Current() at start time and never re-read it live.
type Manager struct {
	logger *slog.Logger
	store  Store

	mu           sync.RWMutex
	current      Config
	learningMode bool
}

// NewManager loads persisted state, falling back to the default preset when
// the stored value is absent or unreadable.
func NewManager(store Store, logger *slog.Logger) *Manager {
	m := &Manager{logger: logger, store: store, current: Default}

	if raw, ok := store.Get(configurationKey); ok {
		var cfg Config
		if err := json.Unmarshal(raw, &cfg); err == nil {
			m.current = cfg.Clamped()
		} else if logger != nil {
			logger.Warn("stored auto-stop configuration unreadable; using default", "error", err.Error())
		}
	}

	if raw, ok := store.Get(learningModeKey); ok {
		var learning bool
		if err := json.Unmarshal(raw, &learning); err == nil {
			m.learningMode = learning
		}
	}

	return m
}

// Current returns a stable snapshot of the active configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// LearningMode reports whether the learning preset is pinned.
func (m *Manager) LearningMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.learningMode
}

// SetLearningMode toggles between the learning and default presets.
func (m *Manager) SetLearningMode(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.learningMode = enabled
	if enabled {
		m.current = Learning
	} else {
		m.current = Default
	}

	if err := m.persistLearningLocked(); err != nil {
		return err
	}
	return m.persistConfigurationLocked()
}

// SetQuickMode applies the quick preset and clears learning mode.
func (m *Manager) SetQuickMode() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = Quick
	m.learningMode = false

	if err := m.persistLearningLocked(); err != nil {
		return err
	}
	return m.persistConfigurationLocked()
}

// SetCustom stores an explicit configuration, re-applying clamps.
func (m *Manager) SetCustom(enabled bool, threshold float64, adaptive bool, maxDuration float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = Config{
		Enabled:              enabled,
		Threshold:            threshold,
		AdaptiveTimeout:      adaptive,
		MaxRecordingDuration: maxDuration,
	}.Clamped()

	return m.persistConfigurationLocked()
}

func (m *Manager) persistConfigurationLocked() error {
	encoded, err := json.Marshal(m.current)
	if err != nil {
		return err
	}
	return m.store.Set(configurationKey, encoded)
}

func (m *Manager) persistLearningLocked() error {
	encoded, err := json.Marshal(m.learningMode)
	if err != nil {
		return err
	}
	return m.store.Set(learningModeKey, encoded)
}
