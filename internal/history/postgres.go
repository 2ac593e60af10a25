package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

// PostgresConfig holds configuration for the PostgreSQL history backend.
type PostgresConfig struct {
	DSN             string        `json:"dsn" mapstructure:"dsn"`
	Table           string        `json:"table" mapstructure:"table"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// PostgresStore persists history records in a PostgreSQL table. Appends are
// single-row inserts, so per-key atomicity follows from transactional
// inserts; no application-level locking is needed.
type PostgresStore struct {
	config *PostgresConfig
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, config *PostgresConfig, logger *logrus.Logger) (*PostgresStore, error) {
	if config == nil || config.DSN == "" {
		return nil, errors.NewHistoryError(errors.CodeHistoryBackend, "PostgreSQL DSN is required")
	}
	if config.Table == "" {
		config.Table = constants.DefaultHistoryTable
	}
	if logger == nil {
		logger = logrus.New()
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryBackend, "failed to open PostgreSQL connection")
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryBackend, "failed to connect to PostgreSQL")
	}

	store := &PostgresStore{config: config, db: db, logger: logger}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("table", config.Table).Info("Connected to PostgreSQL history store")
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		check_name TEXT NOT NULL,
		group_key TEXT NOT NULL,
		run_timestamp TIMESTAMPTZ NOT NULL,
		metric_value DOUBLE PRECISION NOT NULL,
		sample JSONB,
		frequencies JSONB
	)`, pq.QuoteIdentifier(s.config.Table))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryBackend, "failed to create history table")
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (check_name, group_key, run_timestamp DESC)`,
		pq.QuoteIdentifier(s.config.Table+"_key_idx"), pq.QuoteIdentifier(s.config.Table))
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryBackend, "failed to create history index")
	}
	return nil
}

// Append records one observation.
func (s *PostgresStore) Append(ctx context.Context, record models.HistoryRecord) error {
	var sample, frequencies interface{}
	if record.Sample != nil {
		data, err := json.Marshal(record.Sample)
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryAppendFailed, "failed to encode sample")
		}
		sample = data
	}
	if record.Frequencies != nil {
		data, err := json.Marshal(record.Frequencies)
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryAppendFailed, "failed to encode frequencies")
		}
		frequencies = data
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (check_name, group_key, run_timestamp, metric_value, sample, frequencies)
		VALUES ($1, $2, $3, $4, $5, $6)`, pq.QuoteIdentifier(s.config.Table))
	_, err := s.db.ExecContext(ctx, stmt,
		record.CheckName, record.GroupKey, record.Timestamp, record.Value, sample, frequencies)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryAppendFailed, "failed to insert history record")
	}
	return nil
}

// Recent returns the most recent n records for the key, newest first.
func (s *PostgresStore) Recent(ctx context.Context, checkName, groupKey string, n int) ([]models.HistoryRecord, error) {
	stmt := fmt.Sprintf(`SELECT check_name, group_key, run_timestamp, metric_value, sample, frequencies
		FROM %s WHERE check_name = $1 AND group_key = $2
		ORDER BY run_timestamp DESC, id DESC LIMIT $3`, pq.QuoteIdentifier(s.config.Table))

	rows, err := s.db.QueryContext(ctx, stmt, checkName, groupKey, n)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to query history records")
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var record models.HistoryRecord
		var sample, frequencies []byte
		if err := rows.Scan(&record.CheckName, &record.GroupKey, &record.Timestamp, &record.Value, &sample, &frequencies); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to scan history record")
		}
		if len(sample) > 0 {
			if err := json.Unmarshal(sample, &record.Sample); err != nil {
				return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to decode sample")
			}
		}
		if len(frequencies) > 0 {
			if err := json.Unmarshal(frequencies, &record.Frequencies); err != nil {
				return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to decode frequencies")
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to read history records")
	}
	return records, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
