package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "dqcore"
	AppDescription = "Data Quality Check Engine"
	AppVersion     = "0.1.0"

	// API constants
	APIVersion = "v1"
	APIPrefix  = "/api/v1"

	// Default server configuration
	DefaultPort            = 8080
	DefaultHost            = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Evaluation defaults
	DefaultCheckTimeout    = 2 * time.Minute
	DefaultHistoryWindow   = 25
	DefaultSampleSize      = 10000
	DefaultAllowedFailures = 0

	// Statistical defaults
	DefaultSignificanceLevel = 0.05
	DefaultConfidence        = 0.95
	DefaultAnomalyThreshold  = 3.0
	DefaultBenfordThreshold  = 0.05
	DefaultBenfordMinSamples = 100
	DefaultMatchPercentage   = 100.0

	// History store defaults
	DefaultHistoryTable     = "dq_check_history"
	DefaultHistoryKeyPrefix = "dqcore:history"
	DefaultStorageTimeout   = 30 * time.Second
	DefaultMaxConnections   = 20

	// Environment key for *_targets overrides
	DefaultEnvironment = "dev"
)

// Check-type identifiers as they appear in external configuration. The
// loader maps them onto the closed CheckKind enum at the boundary.
const (
	ConfigKeyRowCount           = "row_count_check"
	ConfigKeyNullCheck          = "null_check"
	ConfigKeyTypeCheck          = "type_check"
	ConfigKeyRangeCheck         = "range_check"
	ConfigKeyPatternMatch       = "pattern_match_check"
	ConfigKeyAcceptedValues     = "accepted_values_check"
	ConfigKeyUniqueness         = "uniqueness_check"
	ConfigKeyStaticThreshold    = "static_threshold"
	ConfigKeyPercentDelta       = "percent_delta"
	ConfigKeyAnomalyDetection   = "anomaly_detection"
	ConfigKeyPredictedRange     = "predicted_range"
	ConfigKeyDistributionChange = "distribution_change"
	ConfigKeyEntropy            = "entropy_check"
	ConfigKeyBenfordLaw         = "benford_law"
	ConfigKeyCorrelation        = "correlation_check"
	ConfigKeyCustomQuery        = "custom_query"
	ConfigKeyCustomExpression   = "custom_expression"
	ConfigKeyCrossTable         = "cross_table_check"
)

// History store backends
const (
	HistoryBackendMemory   = "memory"
	HistoryBackendPostgres = "postgres"
	HistoryBackendRedis    = "redis"
	HistoryBackendInflux   = "influxdb"
)

// Data source types accepted in asset configuration.
const (
	DataSourceDatabase  = "database"
	DataSourceDataFrame = "dataframe"
)
