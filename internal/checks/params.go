package checks

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

// Parameter extraction helpers. Configuration arrives as loosely typed YAML
// maps; cast coerces scalars and every violation is a configuration error so
// bad definitions fail at load time, never at evaluation time.

func requiredString(params map[string]interface{}, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", errors.NewConfigurationError(errors.CodeMissingParameter,
			fmt.Sprintf("required parameter %q is missing", key))
	}
	s, err := cast.ToStringE(raw)
	if err != nil || s == "" {
		return "", errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("parameter %q must be a non-empty string", key))
	}
	return s, nil
}

func optionalString(params map[string]interface{}, key, fallback string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("parameter %q must be a string", key))
	}
	return s, nil
}

func optionalFloat(params map[string]interface{}, key string) (*float64, error) {
	raw, ok := params[key]
	if !ok {
		return nil, nil
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("parameter %q must be numeric", key))
	}
	return &f, nil
}

func floatOrDefault(params map[string]interface{}, key string, fallback float64) (float64, error) {
	f, err := optionalFloat(params, key)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return fallback, nil
	}
	return *f, nil
}

func requiredFloat(params map[string]interface{}, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, errors.NewConfigurationError(errors.CodeMissingParameter,
			fmt.Sprintf("required parameter %q is missing", key))
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("parameter %q must be numeric", key))
	}
	return f, nil
}

func intOrDefault(params map[string]interface{}, key string, fallback int) (int, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("parameter %q must be an integer", key))
	}
	return n, nil
}

func requiredStringSlice(params map[string]interface{}, key string) ([]string, error) {
	raw, ok := params[key]
	if !ok {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			fmt.Sprintf("required parameter %q is missing", key))
	}
	s, err := cast.ToStringSliceE(raw)
	if err != nil || len(s) == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("parameter %q must be a non-empty list of strings", key))
	}
	return s, nil
}

func requiredSlice(params map[string]interface{}, key string) ([]interface{}, error) {
	raw, ok := params[key]
	if !ok {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			fmt.Sprintf("required parameter %q is missing", key))
	}
	s, err := cast.ToSliceE(raw)
	if err != nil || len(s) == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			fmt.Sprintf("parameter %q must be a non-empty list", key))
	}
	return s, nil
}

func metricParam(params map[string]interface{}, key string) (models.Metric, error) {
	expr, err := requiredString(params, key)
	if err != nil {
		return models.Metric{}, err
	}
	metric, err := models.ParseMetric(expr)
	if err != nil {
		return models.Metric{}, errors.NewConfigurationError(errors.CodeInvalidParameter, err.Error())
	}
	return metric, nil
}

func enumParam(params map[string]interface{}, key, fallback string, allowed ...string) (string, error) {
	s, err := optionalString(params, key, fallback)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", errors.NewConfigurationError(errors.CodeInvalidParameter,
		fmt.Sprintf("parameter %q must be one of %v, got %q", key, allowed, s))
}
