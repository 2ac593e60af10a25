package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

const targetsSuffix = "_targets"

// Suite is a fully resolved check configuration: per-asset dataset handles
// and check definitions, with environment overrides already applied and
// external check-type identifiers mapped onto the engine's closed enum.
type Suite struct {
	Environment string
	Assets      map[string]*AssetConfig
}

// AssetConfig is the resolved configuration of one asset.
type AssetConfig struct {
	Handle *models.DatasetHandle
	Checks []*models.CheckDefinition
}

// AssetIDs returns the configured asset identifiers sorted ascending, for
// deterministic iteration.
func (s *Suite) AssetIDs() []string {
	ids := make([]string, 0, len(s.Assets))
	for id := range s.Assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// rawSuite mirrors the YAML document before resolution. Check blocks stay as
// loose maps because each check type carries its own parameter set.
type rawSuite struct {
	Environment string                   `yaml:"environment"`
	Assets      map[string]rawAssetBlock `yaml:"assets"`
}

// rawAssetBlock is an alias, not a defined type. yaml.v3 propagates a
// defined map type into every nested mapping it decodes, and the checks,
// time_filter and `*_targets` blocks are read back through
// map[string]interface{} assertions, which fail for a defined type.
type rawAssetBlock = map[string]interface{}

// kindForKey maps external check-type identifiers onto the closed enum.
var kindForKey = map[string]models.CheckKind{
	constants.ConfigKeyRowCount:           models.KindRowCount,
	constants.ConfigKeyNullCheck:          models.KindNullCheck,
	constants.ConfigKeyTypeCheck:          models.KindTypeCheck,
	constants.ConfigKeyRangeCheck:         models.KindRangeCheck,
	constants.ConfigKeyPatternMatch:       models.KindPatternMatch,
	constants.ConfigKeyAcceptedValues:     models.KindAcceptedValues,
	constants.ConfigKeyUniqueness:         models.KindUniqueness,
	constants.ConfigKeyStaticThreshold:    models.KindStaticThreshold,
	constants.ConfigKeyPercentDelta:       models.KindPercentDelta,
	constants.ConfigKeyAnomalyDetection:   models.KindAnomalyDetection,
	constants.ConfigKeyPredictedRange:     models.KindPredictedRange,
	constants.ConfigKeyDistributionChange: models.KindDistributionChange,
	constants.ConfigKeyEntropy:            models.KindEntropy,
	constants.ConfigKeyBenfordLaw:         models.KindBenfordLaw,
	constants.ConfigKeyCorrelation:        models.KindCorrelation,
	constants.ConfigKeyCustomQuery:        models.KindCustomQuery,
	constants.ConfigKeyCustomExpression:   models.KindCustomExpression,
	constants.ConfigKeyCrossTable:         models.KindCrossTable,
}

// LoadSuite reads and resolves a check-suite file. Environment selects the
// branch of every `*_targets` override; when empty, the file's environment
// field or the built-in default applies. Loading is fail-fast: any invalid
// check block rejects the whole suite.
func LoadSuite(path, environment string, registry *checks.Registry) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidParameter,
			fmt.Sprintf("failed to read suite file '%s'", path))
	}
	return ParseSuite(data, environment, registry)
}

// ParseSuite resolves a check-suite document from raw YAML bytes.
func ParseSuite(data []byte, environment string, registry *checks.Registry) (*Suite, error) {
	var raw rawSuite
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidParameter,
			"failed to parse suite document")
	}

	if environment == "" {
		environment = raw.Environment
	}
	if environment == "" {
		environment = constants.DefaultEnvironment
	}

	suite := &Suite{Environment: environment, Assets: make(map[string]*AssetConfig, len(raw.Assets))}
	for assetID, block := range raw.Assets {
		asset, err := resolveAsset(assetID, block, environment, registry)
		if err != nil {
			return nil, err
		}
		suite.Assets[assetID] = asset
	}
	return suite, nil
}

func resolveAsset(assetID string, block rawAssetBlock, environment string, registry *checks.Registry) (*AssetConfig, error) {
	resolved, err := resolveTargets(block, environment)
	if err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("asset '%s': %s", assetID, err))
	}

	handle, err := buildHandle(assetID, resolved)
	if err != nil {
		return nil, err
	}

	rawChecks, _ := resolved["checks"].([]interface{})
	defs := make([]*models.CheckDefinition, 0, len(rawChecks))
	for i, item := range rawChecks {
		def, err := resolveCheck(assetID, i, item, environment)
		if err != nil {
			return nil, err
		}
		if err := registry.Validate(def); err != nil {
			return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
				fmt.Sprintf("asset '%s' check '%s': %s", assetID, def.Name, err))
		}
		defs = append(defs, def)
	}

	return &AssetConfig{Handle: handle, Checks: defs}, nil
}

func buildHandle(assetID string, block map[string]interface{}) (*models.DatasetHandle, error) {
	sourceType := cast.ToString(block["data_source_type"])
	if sourceType == "" {
		sourceType = constants.DataSourceDataFrame
	}

	handle := &models.DatasetHandle{
		TableName:   cast.ToString(block["table_name"]),
		ResourceKey: cast.ToString(block["database_resource_key"]),
		WhereClause: cast.ToString(block["where_clause"]),
		SampleSize:  cast.ToInt(block["sample_size"]),
	}

	switch sourceType {
	case constants.DataSourceDatabase:
		handle.SourceKind = models.SourceQueryable
		if handle.TableName == "" {
			return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
				fmt.Sprintf("asset '%s': table_name is required for database sources", assetID))
		}
	case constants.DataSourceDataFrame:
		handle.SourceKind = models.SourceInMemory
	default:
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("asset '%s': unknown data_source_type '%s'", assetID, sourceType))
	}

	if method := cast.ToString(block["sample_method"]); method != "" {
		switch models.SampleMethod(method) {
		case models.SampleRandom, models.SampleFirst:
			handle.SampleMethod = models.SampleMethod(method)
		default:
			return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
				fmt.Sprintf("asset '%s': unknown sample_method '%s'", assetID, method))
		}
	}

	if rawFilter, ok := block["time_filter"].(map[string]interface{}); ok {
		column := cast.ToString(rawFilter["column"])
		lookback, err := cast.ToDurationE(rawFilter["lookback"])
		if err != nil || column == "" {
			return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
				fmt.Sprintf("asset '%s': time_filter requires column and a parseable lookback", assetID))
		}
		handle.TimeFilter = &models.TimeFilter{Column: column, Lookback: lookback}
	}

	return handle, nil
}

// resolveCheck turns one single-key check block into a definition, splitting
// the uniform parameters off from the type-specific ones.
func resolveCheck(assetID string, index int, item interface{}, environment string) (*models.CheckDefinition, error) {
	block, ok := item.(map[string]interface{})
	if !ok || len(block) != 1 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidCheckType,
			fmt.Sprintf("asset '%s': check #%d must be a single-key map of check type to parameters", assetID, index+1))
	}

	var typeKey string
	var rawParams interface{}
	for k, v := range block {
		typeKey, rawParams = k, v
	}

	kind, ok := kindForKey[typeKey]
	if !ok {
		return nil, errors.NewConfigurationError(errors.CodeInvalidCheckType,
			fmt.Sprintf("asset '%s': unknown check type '%s'", assetID, typeKey))
	}

	params, _ := rawParams.(map[string]interface{})
	if params == nil {
		params = map[string]interface{}{}
	}
	params, err := resolveTargets(params, environment)
	if err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("asset '%s' check '%s': %s", assetID, typeKey, err))
	}

	def := &models.CheckDefinition{
		Kind:     kind,
		Severity: models.SeverityError,
	}

	if v, ok := params["name"]; ok {
		def.Name = cast.ToString(v)
		delete(params, "name")
	}
	if def.Name == "" {
		def.Name = fmt.Sprintf("%s.%s.%d", assetID, typeKey, index+1)
	}
	if v, ok := params["group_by"]; ok {
		def.GroupBy = cast.ToString(v)
		delete(params, "group_by")
	}
	if v, ok := params["allowed_failures"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil || n < 0 {
			return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
				fmt.Sprintf("asset '%s' check '%s': allowed_failures must be a non-negative integer", assetID, def.Name))
		}
		def.AllowedFailures = n
		delete(params, "allowed_failures")
	}
	if v, ok := params["blocking"]; ok {
		def.Blocking = cast.ToBool(v)
		delete(params, "blocking")
	}
	if v, ok := params["severity"]; ok {
		switch strings.ToUpper(cast.ToString(v)) {
		case string(models.SeverityWarn):
			def.Severity = models.SeverityWarn
		case string(models.SeverityError):
			def.Severity = models.SeverityError
		default:
			return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
				fmt.Sprintf("asset '%s' check '%s': unknown severity '%v'", assetID, def.Name, v))
		}
		delete(params, "severity")
	}

	def.Parameters = params
	return def, nil
}

// resolveTargets applies environment-keyed overrides recursively: any key
// ending in `_targets` whose value maps environments to values is replaced
// by the selected environment's value under the trimmed key. An override
// that does not name the active environment is an error, not a silent skip.
func resolveTargets(in map[string]interface{}, environment string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]interface{}); ok && !strings.HasSuffix(key, targetsSuffix) {
			resolved, err := resolveTargets(nested, environment)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
			continue
		}

		if !strings.HasSuffix(key, targetsSuffix) {
			out[key] = value
			continue
		}

		branches, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("override '%s' must map environments to values", key)
		}
		selected, ok := branches[environment]
		if !ok {
			return nil, fmt.Errorf("override '%s' has no value for environment '%s'", key, environment)
		}
		out[strings.TrimSuffix(key, targetsSuffix)] = selected
	}
	return out, nil
}
