package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/pkg/models"
)

const sampleSuite = `
environment: production
assets:
  orders:
    data_source_type: database
    table_name: public.orders
    database_resource_key: warehouse
    where_clause: "status != 'draft'"
    sample_size: 10000
    sample_method: random
    time_filter:
      column: created_at
      lookback: 24h
    checks:
      - row_count_check:
          name: orders_volume
          min_rows: 1000
      - null_check:
          columns: [customer_id]
          group_by: region
          allowed_failures: 1
          blocking: true
          severity: warn
      - static_threshold:
          metric: "mean:amount"
          max_value_targets:
            production: 500
            staging: 50
  customers:
    checks:
      - uniqueness_check:
          columns: [customer_id]
`

func TestParseSuite(t *testing.T) {
	suite, err := ParseSuite([]byte(sampleSuite), "", checks.NewRegistry(nil))
	require.NoError(t, err)

	assert.Equal(t, "production", suite.Environment)
	assert.Equal(t, []string{"customers", "orders"}, suite.AssetIDs())

	orders := suite.Assets["orders"]
	require.NotNil(t, orders)
	assert.Equal(t, models.SourceQueryable, orders.Handle.SourceKind)
	assert.Equal(t, "public.orders", orders.Handle.TableName)
	assert.Equal(t, "warehouse", orders.Handle.ResourceKey)
	assert.Equal(t, "status != 'draft'", orders.Handle.WhereClause)
	assert.Equal(t, 10000, orders.Handle.SampleSize)
	assert.Equal(t, models.SampleRandom, orders.Handle.SampleMethod)
	require.NotNil(t, orders.Handle.TimeFilter)
	assert.Equal(t, "created_at", orders.Handle.TimeFilter.Column)
	assert.Equal(t, 24*time.Hour, orders.Handle.TimeFilter.Lookback)

	require.Len(t, orders.Checks, 3)

	volume := orders.Checks[0]
	assert.Equal(t, "orders_volume", volume.Name)
	assert.Equal(t, models.KindRowCount, volume.Kind)
	assert.Equal(t, models.SeverityError, volume.Severity)

	nulls := orders.Checks[1]
	assert.Equal(t, "orders.null_check.2", nulls.Name)
	assert.Equal(t, "region", nulls.GroupBy)
	assert.Equal(t, 1, nulls.AllowedFailures)
	assert.True(t, nulls.Blocking)
	assert.Equal(t, models.SeverityWarn, nulls.Severity)
	// Uniform keys are stripped from the type-specific parameters.
	assert.NotContains(t, nulls.Parameters, "group_by")
	assert.NotContains(t, nulls.Parameters, "severity")

	customers := suite.Assets["customers"]
	require.NotNil(t, customers)
	assert.Equal(t, models.SourceInMemory, customers.Handle.SourceKind)
}

// Nested mapping blocks go through map[string]interface{} assertions after
// decoding, so the check list, time_filter and environment targets must all
// survive a round trip through the YAML decoder.
func TestParseSuiteNestedMappingBlocks(t *testing.T) {
	doc := `
environment: production
assets:
  orders:
    time_filter:
      column: created_at
      lookback: 48h
    checks:
      - static_threshold:
          name: volume_band
          metric: "mean:amount"
          max_value_targets:
            production: 500
            staging: 50
`
	suite, err := ParseSuite([]byte(doc), "", checks.NewRegistry(nil))
	require.NoError(t, err)

	orders := suite.Assets["orders"]
	require.NotNil(t, orders.Handle.TimeFilter)
	assert.Equal(t, 48*time.Hour, orders.Handle.TimeFilter.Lookback)

	require.Len(t, orders.Checks, 1)
	assert.Equal(t, "volume_band", orders.Checks[0].Name)
	assert.Equal(t, 500, orders.Checks[0].Parameters["max_value"])
}

func TestParseSuiteEnvironmentOverride(t *testing.T) {
	production, err := ParseSuite([]byte(sampleSuite), "production", checks.NewRegistry(nil))
	require.NoError(t, err)
	threshold := production.Assets["orders"].Checks[2]
	assert.Equal(t, 500, threshold.Parameters["max_value"])
	assert.NotContains(t, threshold.Parameters, "max_value_targets")

	staging, err := ParseSuite([]byte(sampleSuite), "staging", checks.NewRegistry(nil))
	require.NoError(t, err)
	assert.Equal(t, 50, staging.Assets["orders"].Checks[2].Parameters["max_value"])
}

func TestParseSuiteMissingEnvironmentBranch(t *testing.T) {
	_, err := ParseSuite([]byte(sampleSuite), "development", checks.NewRegistry(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "development")
}

func TestParseSuiteUnknownCheckType(t *testing.T) {
	doc := `
assets:
  orders:
    checks:
      - freshness_check:
          column: created_at
`
	_, err := ParseSuite([]byte(doc), "", checks.NewRegistry(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "freshness_check")
}

func TestParseSuiteInvalidCheckParameters(t *testing.T) {
	doc := `
assets:
  orders:
    checks:
      - row_count_check: {}
`
	_, err := ParseSuite([]byte(doc), "", checks.NewRegistry(nil))
	assert.Error(t, err)
}

func TestParseSuiteDatabaseSourceRequiresTableName(t *testing.T) {
	doc := `
assets:
  orders:
    data_source_type: database
    checks: []
`
	_, err := ParseSuite([]byte(doc), "", checks.NewRegistry(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table_name")
}

func TestParseSuiteNegativeAllowedFailures(t *testing.T) {
	doc := `
assets:
  orders:
    checks:
      - row_count_check:
          min_rows: 1
          allowed_failures: -1
`
	_, err := ParseSuite([]byte(doc), "", checks.NewRegistry(nil))
	assert.Error(t, err)
}

func TestParseSuiteDefaultEnvironment(t *testing.T) {
	doc := `
assets:
  orders:
    checks:
      - row_count_check:
          min_rows: 1
`
	suite, err := ParseSuite([]byte(doc), "", checks.NewRegistry(nil))
	require.NoError(t, err)
	assert.NotEmpty(t, suite.Environment)
}
