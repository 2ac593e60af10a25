package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

// RedisConfig holds configuration for the Redis history backend.
type RedisConfig struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	Password     string        `json:"password" mapstructure:"password"`
	DB           int           `json:"db" mapstructure:"db"`
	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size"`
	KeyPrefix    string        `json:"key_prefix" mapstructure:"key_prefix"`
	MaxLen       int64         `json:"max_len" mapstructure:"max_len"`
}

// RedisStore keeps history as one Redis list per (check_name, group_key),
// newest record at the head. LPUSH is atomic, which gives the per-key
// append atomicity the engine requires. When MaxLen is set the list is
// trimmed after each append; that bounds storage but makes the backend
// lossy beyond the window, which is fine because checks only ever read a
// bounded recent window.
type RedisStore struct {
	config *RedisConfig
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(ctx context.Context, config *RedisConfig, logger *logrus.Logger) (*RedisStore, error) {
	if config == nil || config.Addr == "" {
		return nil, errors.NewHistoryError(errors.CodeHistoryBackend, "Redis address is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = constants.DefaultHistoryKeyPrefix
	}
	if logger == nil {
		logger = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryBackend, "failed to connect to Redis")
	}

	logger.WithFields(logrus.Fields{
		"addr": config.Addr,
		"db":   config.DB,
	}).Info("Connected to Redis history store")

	return &RedisStore{config: config, client: client, logger: logger}, nil
}

func (s *RedisStore) key(checkName, groupKey string) string {
	return fmt.Sprintf("%s:%s:%s", s.config.KeyPrefix, checkName, groupKey)
}

// Append records one observation.
func (s *RedisStore) Append(ctx context.Context, record models.HistoryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryAppendFailed, "failed to encode history record")
	}

	key := s.key(record.CheckName, record.GroupKey)
	if err := s.client.LPush(ctx, key, data).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryAppendFailed, "failed to append history record")
	}
	if s.config.MaxLen > 0 {
		if err := s.client.LTrim(ctx, key, 0, s.config.MaxLen-1).Err(); err != nil {
			s.logger.WithField("key", key).WithError(err).Warn("Failed to trim history list")
		}
	}
	return nil
}

// Recent returns the most recent n records for the key, newest first.
func (s *RedisStore) Recent(ctx context.Context, checkName, groupKey string, n int) ([]models.HistoryRecord, error) {
	raw, err := s.client.LRange(ctx, s.key(checkName, groupKey), 0, int64(n)-1).Result()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to read history records")
	}

	records := make([]models.HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var record models.HistoryRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to decode history record")
		}
		records = append(records, record)
	}
	return records, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
