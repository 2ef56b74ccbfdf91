package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CRX_DEPLOY_PASSWORD.
const EnvPrefix = "CRX_DEPLOY"

// envKeys are the settings that can be overridden from the environment.
//
//nolint:gochecknoglobals // Read-only list of keys.
var envKeys = []string{
	"host",
	"user",
	"password",
	"retry",
	"log_level",
	"upload_timeout",
	"install_timeout",
	"recompile_timeout",
}

// ApplyEnv overrides cfg fields with values from CRX_DEPLOY_* variables.
// Unset variables leave the corresponding field untouched.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setString(v, "host", &cfg.Host)
	setString(v, "user", &cfg.User)
	setString(v, "password", &cfg.Password)
	setString(v, "log_level", &cfg.LogLevel)

	if v.IsSet("retry") {
		retry, err := strconv.Atoi(v.GetString("retry"))
		if err != nil {
			return fmt.Errorf("parse %s_RETRY: %w", EnvPrefix, err)
		}

		cfg.Retry = &retry
	}

	durations := map[string]*time.Duration{
		"upload_timeout":    &cfg.UploadTimeout,
		"install_timeout":   &cfg.InstallTimeout,
		"recompile_timeout": &cfg.RecompileTimeout,
	}

	for key, target := range durations {
		if !v.IsSet(key) {
			continue
		}

		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return fmt.Errorf("parse %s env: %w", key, err)
		}

		*target = d
	}

	return nil
}

func setString(v *viper.Viper, key string, target *string) {
	if v.IsSet(key) {
		*target = v.GetString(key)
	}
}
