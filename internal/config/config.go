package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shiftfill/outreach/internal/ranking"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	DB       DBConfig       `mapstructure:"db"`
	Server   ServerConfig   `mapstructure:"server"`
	Lock     LockConfig     `mapstructure:"lock"`
	Campaign CampaignConfig `mapstructure:"campaign"`
	Ranking  ranking.Config `mapstructure:"ranking"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

var configFile = "./configs/config.yaml"

func Get() *Config {

	if value, _ := os.LookupEnv("MODE"); value == "test" {
		configFile = "../../configs/config.yaml"
	}
	if value, ok := os.LookupEnv("CONFIG_PATH"); ok {
		configFile = value
	}

	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func loadConfig(file string) (*Config, error) {

	v := viper.New()
	v.SetConfigFile(file)
	v.AutomaticEnv()

	v.SetDefault("MODE", "release")
	setDefaults(v)

	err := bindEnvironmentVariables(v)
	if err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", file, err)
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if len(config.Ranking.Needs) == 0 {
		config.Ranking.Needs = ranking.DefaultNeeds()
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := ranking.DefaultConfig()
	v.SetDefault("ranking.preferred_weight", defaults.PreferredWeight)
	v.SetDefault("ranking.history_weight", defaults.HistoryWeight)
	v.SetDefault("ranking.history_visit_bonus", defaults.HistoryVisitBonus)
	v.SetDefault("ranking.history_bonus_cap", defaults.HistoryBonusCap)
	v.SetDefault("ranking.overtime_threshold_hours", defaults.OvertimeThresholdHours)
	v.SetDefault("ranking.overtime_penalty", defaults.OvertimePenalty)
	v.SetDefault("ranking.tier_a_min_score", defaults.TierAMinScore)
	v.SetDefault("ranking.tier_b_min_score", defaults.TierBMinScore)
	v.SetDefault("ranking.distance_bands", defaults.DistanceBands)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.status_cache_ttl", "5s")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("lock.grace", "15m")
	v.SetDefault("lock.sweep_schedule", "@every 1m")
	v.SetDefault("campaign.voice_fallback", true)
	v.SetDefault("campaign.retry_delay", "5s")
	v.SetDefault("campaign.linger", "30m")
	v.SetDefault("campaign.retention_days", 30)
	v.SetDefault("campaign.cleanup_schedule", "0 3 * * *")
	v.SetDefault("gateway.max_requests_per_second", 10)
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("broker.prefetch", 10)
	v.SetDefault("broker.requeue_delay", "30s")
}

type envBinder interface {
	bindEnvironmentVariables(v *viper.Viper) error
}

func bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error

	sections := map[string]envBinder{
		"LoggerConfig":   LoggerConfig{},
		"DBConfig":       DBConfig{},
		"ServerConfig":   ServerConfig{},
		"LockConfig":     LockConfig{},
		"CampaignConfig": CampaignConfig{},
		"GatewayConfig":  GatewayConfig{},
		"BrokerConfig":   BrokerConfig{},
		"TelegramConfig": TelegramConfig{},
	}

	for name, section := range sections {
		if err := section.bindEnvironmentVariables(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return createMultiError(errs)
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.Server.validate(); err != nil {
		errs = append(errs, fmt.Errorf("ServerConfig: %w", err))
	}

	if err := config.Campaign.validate(); err != nil {
		errs = append(errs, fmt.Errorf("CampaignConfig: %w", err))
	}

	if err := config.Gateway.validate(); err != nil {
		errs = append(errs, fmt.Errorf("GatewayConfig: %w", err))
	}

	if err := config.Broker.validate(); err != nil {
		errs = append(errs, fmt.Errorf("BrokerConfig: %w", err))
	}

	if config.Ranking.TierAMinScore < config.Ranking.TierBMinScore {
		errs = append(errs, fmt.Errorf("RankingConfig: tier_a_min_score must not be below tier_b_min_score"))
	}

	if len(errs) > 0 {
		return createMultiError(errs)
	}

	return nil
}

func createMultiError(errs []error) error {
	return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
}

// bindAll binds every key to its environment variable and joins the failures.
func bindAll(v *viper.Viper, keys map[string]string) error {
	var errs []error
	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return createMultiError(errs)
	}
	return nil
}
