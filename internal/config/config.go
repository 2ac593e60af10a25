package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/inferloop/dqcore/internal/history"
	"github.com/inferloop/dqcore/pkg/constants"
)

// Config is the application configuration for the server and CLI hosts. The
// check suite itself lives in its own document, loaded by LoadSuite.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	History    history.Config   `mapstructure:"history"`

	// DataSources maps database resource keys to PostgreSQL DSNs. Assets
	// with data_source_type database resolve through these.
	DataSources map[string]string `mapstructure:"data_sources"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EvaluationConfig struct {
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
}

// Address returns the host:port the server binds to.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads application configuration from an optional file, with
// environment variables (DQCORE_*) layered on top.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("dqcore")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DQCORE")
	v.AutomaticEnv()

	v.SetDefault("server.host", constants.DefaultHost)
	v.SetDefault("server.port", constants.DefaultPort)
	v.SetDefault("server.read_timeout", constants.DefaultReadTimeout)
	v.SetDefault("server.write_timeout", constants.DefaultWriteTimeout)
	v.SetDefault("server.idle_timeout", constants.DefaultIdleTimeout)
	v.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout)
	v.SetDefault("logging.level", constants.DefaultLogLevel)
	v.SetDefault("logging.format", constants.DefaultLogFormat)
	v.SetDefault("evaluation.check_timeout", constants.DefaultCheckTimeout)
	v.SetDefault("history.backend", constants.HistoryBackendMemory)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return config, nil
}
