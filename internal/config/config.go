// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package config loads the session router's configuration with viper,
// mirroring api/integration-api/config's InitConfig/GetApplicationConfig
// split: a KeyDelimiter("__")-configured Viper read from .env/ENV_PATH,
// then unmarshalled and validated into a typed struct.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// PowerModeProfile holds the TransportParams knobs (spec.md §6) for one
// PowerMode tier, expressed in the plain scalar shape viper/mapstructure
// can decode directly (internal/config does not import internal/types to
// keep the decode layer independent of the domain model; the router
// converts this into types.TransportParams after validation).
type PowerModeProfile struct {
	Debug                bool          `mapstructure:"debug"`
	ConnectCheckInterval  time.Duration `mapstructure:"connect_check_interval_ms"`
	TimeoutConnect        time.Duration `mapstructure:"timeout_connect_ms"`
	TimeoutInactivity      time.Duration `mapstructure:"timeout_inactivity_ms"`
	TimeoutSession         time.Duration `mapstructure:"timeout_session_ms"`
	IPv4Fallback          bool          `mapstructure:"ipv4_fallback"`
	BackoffDelay          time.Duration `mapstructure:"backoff_delay_ms"`
}

// AppConfig is the session router's top-level configuration, mirroring
// api/integration-api/config.AppConfig's shape and validate tags.
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`

	CaptureDirPath string `mapstructure:"capture_dir_path"`

	PowerModeFull PowerModeProfile `mapstructure:"power_mode_full"`
	PowerModeLow  PowerModeProfile `mapstructure:"power_mode_low"`
}

// InitConfig builds a Viper instance the same way
// api/integration-api/config.InitConfig does: KeyDelimiter("__"), an
// optional .env file (or ENV_PATH override), AutomaticEnv, then defaults
// applied before a second read so environment variables still win.
func InitConfig() (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))

	v.AddConfigPath(".")
	v.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		log.Printf("sessionrouter: reading config from ENV_PATH=%s", path)
		v.SetConfigFile(path)
	}
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	setDefaults(v)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("sessionrouter: falling back to environment variables: %v", err)
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "sessionrouterd")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9191)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CAPTURE_DIR_PATH", "")

	v.SetDefault("POWER_MODE_FULL__CONNECT_CHECK_INTERVAL_MS", 50*time.Millisecond)
	v.SetDefault("POWER_MODE_FULL__TIMEOUT_CONNECT_MS", 10*time.Second)
	v.SetDefault("POWER_MODE_FULL__TIMEOUT_INACTIVITY_MS", 30*time.Second)
	v.SetDefault("POWER_MODE_FULL__TIMEOUT_SESSION_MS", 60*time.Second)
	v.SetDefault("POWER_MODE_FULL__BACKOFF_DELAY_MS", 500*time.Millisecond)

	v.SetDefault("POWER_MODE_LOW__CONNECT_CHECK_INTERVAL_MS", 200*time.Millisecond)
	v.SetDefault("POWER_MODE_LOW__TIMEOUT_CONNECT_MS", 20*time.Second)
	v.SetDefault("POWER_MODE_LOW__TIMEOUT_INACTIVITY_MS", 60*time.Second)
	v.SetDefault("POWER_MODE_LOW__TIMEOUT_SESSION_MS", 120*time.Second)
	v.SetDefault("POWER_MODE_LOW__BACKOFF_DELAY_MS", 2*time.Second)
}

// GetApplicationConfig unmarshals and validates v into an AppConfig,
// mirroring api/integration-api/config.GetApplicationConfig's
// Unmarshal+validator.Struct sequence.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("sessionrouter: unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("sessionrouter: validate config: %w", err)
	}
	return &cfg, nil
}
