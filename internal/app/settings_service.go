package app

import (
	"context"
	"log/slog"

	"remindme-service/internal/domain"
)

const (
	SettingSpeechEnabled        = "speechEnabled"
	SettingNotificationsEnabled = "notificationsEnabled"
)

// SettingsPatch updates only the fields that are set.
type SettingsPatch struct {
	SpeechEnabled        *bool `json:"speechEnabled,omitempty"`
	NotificationsEnabled *bool `json:"notificationsEnabled,omitempty"`
}

// SettingsService reads and writes user preferences. Flags default to
// enabled when never written.
type SettingsService struct {
	repo SettingsRepository
	log  *slog.Logger
}

func NewSettingsService(repo SettingsRepository, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{repo: repo, log: logger}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	speech, err := s.flag(ctx, SettingSpeechEnabled)
	if err != nil {
		return domain.Settings{}, err
	}
	notifications, err := s.flag(ctx, SettingNotificationsEnabled)
	if err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{SpeechEnabled: speech, NotificationsEnabled: notifications}, nil
}

func (s *SettingsService) Update(ctx context.Context, patch SettingsPatch) (domain.Settings, error) {
	if patch.SpeechEnabled != nil {
		if err := s.repo.WriteSetting(ctx, SettingSpeechEnabled, encodeFlag(*patch.SpeechEnabled)); err != nil {
			s.log.Error("write setting", "key", SettingSpeechEnabled, "err", err)
			return domain.Settings{}, err
		}
	}
	if patch.NotificationsEnabled != nil {
		if err := s.repo.WriteSetting(ctx, SettingNotificationsEnabled, encodeFlag(*patch.NotificationsEnabled)); err != nil {
			s.log.Error("write setting", "key", SettingNotificationsEnabled, "err", err)
			return domain.Settings{}, err
		}
	}
	return s.Get(ctx)
}

// SpeechEnabled falls back to true when the setting cannot be read.
func (s *SettingsService) SpeechEnabled(ctx context.Context) bool {
	return s.flagOrTrue(ctx, SettingSpeechEnabled)
}

// NotificationsEnabled falls back to true when the setting cannot be read.
func (s *SettingsService) NotificationsEnabled(ctx context.Context) bool {
	return s.flagOrTrue(ctx, SettingNotificationsEnabled)
}

func (s *SettingsService) Clear(ctx context.Context) error {
	return s.repo.ClearSettings(ctx)
}

func (s *SettingsService) flagOrTrue(ctx context.Context, key string) bool {
	v, err := s.flag(ctx, key)
	if err != nil {
		s.log.Error("read setting", "key", key, "err", err)
		return true
	}
	return v
}

func (s *SettingsService) flag(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.repo.ReadSetting(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return raw == "1", nil
}

func encodeFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
