package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/kukuri-social/kukuri/internal/daemon"
	"github.com/kukuri-social/kukuri/internal/gateway"
	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/kukuri-social/kukuri/internal/storage"
	"go.uber.org/zap"
)

// Settings coordinates the settings document. The daemon owns the merged
// document; the local key-value store only mirrors the last confirmed
// blob so preferences like theme survive offline restarts.
type Settings struct {
	gateway *gateway.Gateway
	kv      *storage.Store
	auth    *Auth
	logger  *zap.Logger

	mu      sync.RWMutex
	current *model.Settings
}

// NewSettings creates the settings coordinator.
func NewSettings(gw *gateway.Gateway, kv *storage.Store, auth *Auth, logger *zap.Logger) *Settings {
	return &Settings{
		gateway: gw,
		kv:      kv,
		auth:    auth,
		logger:  logger.Named("settings"),
	}
}

// Load fetches the settings document for the current session. When the
// daemon has none, defaults are used. The confirmed value is mirrored
// locally.
func (s *Settings) Load(ctx context.Context) (*model.Settings, error) {
	settings, err := s.gateway.GetSettings(ctx, s.auth.CurrentUserID())
	if err != nil {
		return nil, err
	}

	if settings == nil {
		settings = model.DefaultSettings()
	}

	s.setCurrent(settings)

	return settings, nil
}

// Current returns the last loaded settings, or defaults before any load.
func (s *Settings) Current() *model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return model.DefaultSettings()
	}

	return s.current
}

// Update applies a partial settings update. Present fields are dispatched,
// and on confirmation the same fields are applied to the local copy and
// mirrored to the key-value store. An empty update is a no-op.
func (s *Settings) Update(ctx context.Context, update *model.SettingsUpdate) (*model.Settings, error) {
	if update.Empty() {
		return s.Current(), nil
	}

	userID := s.auth.CurrentUserID()

	result, err := s.gateway.UpdateSettings(ctx, userID, update)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		return nil, &daemon.CommandError{Command: gateway.CmdUpdateSettings, Message: result.Message}
	}

	s.mu.Lock()
	if s.current == nil {
		s.current = model.DefaultSettings()
	}

	update.Apply(s.current)
	confirmed := *s.current
	s.mu.Unlock()

	s.persist(&confirmed)

	return &confirmed, nil
}

func (s *Settings) setCurrent(settings *model.Settings) {
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	s.persist(settings)
}

// persist mirrors the confirmed settings into the local store. Failures
// are logged only; the daemon copy remains authoritative.
func (s *Settings) persist(settings *model.Settings) {
	blob, err := sonic.Marshal(settings)
	if err != nil {
		s.logger.Warn("Failed to encode settings", zap.Error(err))
		return
	}

	if err := s.kv.Set(storage.KeySettings, string(blob)); err != nil {
		s.logger.Warn("Failed to persist settings", zap.Error(err))
	}

	if err := s.kv.Set(storage.KeyTheme, settings.Theme); err != nil {
		s.logger.Warn("Failed to persist theme", zap.Error(err))
	}

	if err := s.kv.Set(storage.KeyLanguage, settings.Language); err != nil {
		s.logger.Warn("Failed to persist language", zap.Error(err))
	}
}

// LoadLocal reads the mirrored settings blob without touching the daemon.
// Used for theme and language before a session exists; never a substitute
// for the daemon copy.
func (s *Settings) LoadLocal() (*model.Settings, error) {
	blob, found, err := s.kv.Get(storage.KeySettings)
	if err != nil {
		return nil, err
	}

	if !found {
		return model.DefaultSettings(), nil
	}

	var settings model.Settings
	if err := sonic.Unmarshal([]byte(blob), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode local settings: %w", err)
	}

	return &settings, nil
}
