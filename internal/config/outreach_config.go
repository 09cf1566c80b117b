package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	StatusCacheTTL time.Duration `mapstructure:"status_cache_ttl"`
}

func (config ServerConfig) validate() error {
	if config.Address == "" {
		return fmt.Errorf("missing variable: server address")
	}
	return nil
}

func (config ServerConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"server.address":          "SERVER_ADDRESS",
		"server.status_cache_ttl": "STATUS_CACHE_TTL",
	})
}

// LockConfig controls the engine's claim on an opening. The lock is held for the campaign
// lifetime plus Grace.
type LockConfig struct {
	Grace         time.Duration `mapstructure:"grace"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

func (config LockConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"lock.grace":          "LOCK_GRACE",
		"lock.sweep_schedule": "LOCK_SWEEP_SCHEDULE",
	})
}

type CampaignConfig struct {
	TierWindow      time.Duration `mapstructure:"tier_window"`
	VoiceWindow     time.Duration `mapstructure:"voice_window"`
	Lifetime        time.Duration `mapstructure:"lifetime"`
	VoiceFallback   bool          `mapstructure:"voice_fallback"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Linger          time.Duration `mapstructure:"linger"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

func (config CampaignConfig) validate() error {
	var errs []error

	if config.TierWindow <= 0 {
		errs = append(errs, fmt.Errorf("tier_window must be positive"))
	}
	if config.VoiceFallback && config.VoiceWindow <= 0 {
		errs = append(errs, fmt.Errorf("voice_window must be positive when voice_fallback is on"))
	}
	if config.Lifetime < config.TierWindow {
		errs = append(errs, fmt.Errorf("lifetime must be at least one tier window"))
	}
	if config.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("retention_days must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config CampaignConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"campaign.tier_window":      "CAMPAIGN_TIER_WINDOW",
		"campaign.voice_window":     "CAMPAIGN_VOICE_WINDOW",
		"campaign.lifetime":         "CAMPAIGN_LIFETIME",
		"campaign.voice_fallback":   "CAMPAIGN_VOICE_FALLBACK",
		"campaign.retention_days":   "CAMPAIGN_RETENTION_DAYS",
		"campaign.cleanup_schedule": "CAMPAIGN_CLEANUP_SCHEDULE",
	})
}
