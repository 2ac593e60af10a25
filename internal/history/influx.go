package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

const influxMeasurement = "dq_check_history"

// InfluxConfig holds configuration for the InfluxDB history backend.
type InfluxConfig struct {
	URL          string        `json:"url" mapstructure:"url"`
	Token        string        `json:"token" mapstructure:"token"`
	Organization string        `json:"organization" mapstructure:"organization"`
	Bucket       string        `json:"bucket" mapstructure:"bucket"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
}

// InfluxStore keeps history as points in one measurement, tagged by check
// name and group key. The full record is carried in a single field so that
// distribution samples survive the round trip; the scalar value is written
// as its own field for ad-hoc dashboarding.
type InfluxStore struct {
	config   *InfluxConfig
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	logger   *logrus.Logger
}

// NewInfluxStore connects to InfluxDB and verifies connectivity.
func NewInfluxStore(ctx context.Context, config *InfluxConfig, logger *logrus.Logger) (*InfluxStore, error) {
	if config == nil || config.URL == "" {
		return nil, errors.NewHistoryError(errors.CodeHistoryBackend, "InfluxDB URL is required")
	}
	if config.Bucket == "" {
		return nil, errors.NewHistoryError(errors.CodeHistoryBackend, "InfluxDB bucket is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	options := influxdb2.DefaultOptions()
	if config.Timeout > 0 {
		options.SetHTTPRequestTimeout(uint(config.Timeout.Seconds()))
	}
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, options)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryBackend, "failed to connect to InfluxDB")
	}

	logger.WithFields(logrus.Fields{
		"url":    config.URL,
		"bucket": config.Bucket,
	}).Info("Connected to InfluxDB history store")

	return &InfluxStore{
		config:   config,
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Organization, config.Bucket),
		queryAPI: client.QueryAPI(config.Organization),
		logger:   logger,
	}, nil
}

// Append records one observation.
func (s *InfluxStore) Append(ctx context.Context, record models.HistoryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryAppendFailed, "failed to encode history record")
	}

	point := influxdb2.NewPointWithMeasurement(influxMeasurement).
		AddTag("check_name", record.CheckName).
		AddTag("group_key", record.GroupKey).
		AddField("metric_value", record.Value).
		AddField("record", string(payload)).
		SetTime(record.Timestamp)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryAppendFailed, "failed to write history point")
	}
	return nil
}

// Recent returns the most recent n records for the key, newest first.
func (s *InfluxStore) Recent(ctx context.Context, checkName, groupKey string, n int) ([]models.HistoryRecord, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
		|> range(start: 0)
		|> filter(fn: (r) => r._measurement == %q and r.check_name == %q and r.group_key == %q and r._field == "record")
		|> sort(columns: ["_time"], desc: true)
		|> limit(n: %d)`,
		s.config.Bucket, influxMeasurement, checkName, groupKey, n)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to query history points")
	}

	var records []models.HistoryRecord
	for result.Next() {
		payload, ok := result.Record().Value().(string)
		if !ok {
			continue
		}
		var record models.HistoryRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to decode history record")
		}
		records = append(records, record)
	}
	if err := result.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed, "failed to read history points")
	}
	return records, nil
}

// Close shuts down the InfluxDB client.
func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}
