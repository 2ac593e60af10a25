package history

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
)

// Config selects and configures a history backend. Exactly one backend
// section is consulted, matching Backend.
type Config struct {
	Backend  string          `json:"backend" yaml:"backend" mapstructure:"backend"`
	Postgres *PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty" mapstructure:"postgres"`
	Redis    *RedisConfig    `json:"redis,omitempty" yaml:"redis,omitempty" mapstructure:"redis"`
	Influx   *InfluxConfig   `json:"influxdb,omitempty" yaml:"influxdb,omitempty" mapstructure:"influxdb"`
}

// NewStore creates the history store named by config. A nil config or empty
// backend selects the in-memory store.
func NewStore(ctx context.Context, config *Config, logger *logrus.Logger) (interfaces.HistoryStore, error) {
	if config == nil || config.Backend == "" || config.Backend == constants.HistoryBackendMemory {
		return NewMemoryStore(), nil
	}

	switch config.Backend {
	case constants.HistoryBackendPostgres:
		return NewPostgresStore(ctx, config.Postgres, logger)
	case constants.HistoryBackendRedis:
		return NewRedisStore(ctx, config.Redis, logger)
	case constants.HistoryBackendInflux:
		return NewInfluxStore(ctx, config.Influx, logger)
	default:
		return nil, errors.NewHistoryError(errors.CodeHistoryBackend,
			fmt.Sprintf("unknown history backend '%s'", config.Backend))
	}
}
