package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type GatewayConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	MaxRequestsPerSecond float64       `mapstructure:"max_requests_per_second"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

func (config GatewayConfig) validate() error {

	var missingFields []string

	if config.BaseURL == "" {
		missingFields = append(missingFields, "base_url")
	}

	if config.APIKey == "" {
		missingFields = append(missingFields, "api_key")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingFields, ", "))
	}

	return nil
}

func (config GatewayConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"gateway.base_url":                "GATEWAY_URL",
		"gateway.api_key":                 "GATEWAY_API_KEY",
		"gateway.max_requests_per_second": "GATEWAY_MAX_REQUESTS_PER_SECOND",
	})
}

type BrokerConfig struct {
	URL              string        `mapstructure:"url"`
	OpeningsQueue    string        `mapstructure:"openings_queue"`
	InboundQueue     string        `mapstructure:"inbound_queue"`
	AssignmentsQueue string        `mapstructure:"assignments_queue"`
	EscalationsQueue string        `mapstructure:"escalations_queue"`
	Prefetch         int           `mapstructure:"prefetch"`
	RequeueDelay     time.Duration `mapstructure:"requeue_delay"`
}

func (config BrokerConfig) validate() error {

	var missingFields []string

	if config.URL == "" {
		missingFields = append(missingFields, "url")
	}
	if config.OpeningsQueue == "" {
		missingFields = append(missingFields, "openings_queue")
	}
	if config.InboundQueue == "" {
		missingFields = append(missingFields, "inbound_queue")
	}
	if config.AssignmentsQueue == "" {
		missingFields = append(missingFields, "assignments_queue")
	}
	if config.EscalationsQueue == "" {
		missingFields = append(missingFields, "escalations_queue")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingFields, ", "))
	}

	return nil
}

func (config BrokerConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"broker.url":           "RABBITMQ_URL",
		"broker.prefetch":      "BROKER_PREFETCH",
		"broker.requeue_delay": "BROKER_REQUEUE_DELAY",
	})
}

// TelegramConfig is optional: an empty token disables coordinator notifications.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

func (config TelegramConfig) Enabled() bool {
	return config.Token != ""
}

func (config TelegramConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"telegram.token":   "TG_TOKEN",
		"telegram.chat_id": "TG_CHAT_ID",
	})
}
