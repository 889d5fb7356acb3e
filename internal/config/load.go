package config

import (
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load,
// e.g. WORKD_SERVER_HTTPPORT or WORKD_LOGLEVEL.
const EnvPrefix = "WORKD"

var envKeys = []string{
	"server.serverMode",
	"server.httpPort",
	"engine.defaultQueue",
	"engine.priorityOrdering",
	"engine.shutdownTimeout",
	"store.dataFolder",
	"store.historyRetention",
	"store.pruneInterval",
	"logFormat",
	"logLevel",
}

// Load builds the configuration from the defaults, the optional YAML file at
// path, the environment and whatever flags were bound to v.
func Load(v *viper.Viper, path string) (*Configuration, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
	}

	cfg := NewConfigurationWithOptionsAndDefaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// queues decoded from the file start from zero values
	for i := range cfg.Engine.Queues {
		if err := defaults.Set(&cfg.Engine.Queues[i]); err != nil {
			return nil, fmt.Errorf("failed to set defaults for queue %q: %w", cfg.Engine.Queues[i].ID, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
