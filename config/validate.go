package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ValidLogLevels = [4]string{"TRACE", "DEBUG", "INFO", "ERROR"}
)

// Validate validates the provided config
// returning a list of errors that can be unwrapped with `errors.Unwrap`
// or nil if the config is valid
func Validate(config Config) error {
	var validLogLevel bool
	var allErrs error

	for _, validLevel := range ValidLogLevels {
		if config.LogLevel == validLevel {
			validLogLevel = true
			break
		}
	}

	if !validLogLevel {
		allErrs = fmt.Errorf("invalid %s specified %s, supported values are %v", LOG_LEVEL_ENVIRONMENT_KEY, config.LogLevel, ValidLogLevels)
	}

	_, err := ParseRawProxyBackendHostURLMap(config.ProxyBackendHostURLMapRaw)

	if err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s: %w", PROXY_BACKEND_HOST_URL_MAP_ENVIRONMENT_KEY, config.ProxyBackendHostURLMapRaw, err))
	}

	_, err = strconv.Atoi(config.ProxyServicePort)

	if err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", PROXY_SERVICE_PORT_ENVIRONMENT_KEY, config.ProxyServicePort))
	}

	if config.ProxyMaxRequestBodyBytes <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be greater than zero", PROXY_MAX_REQUEST_BODY_BYTES_ENVIRONMENT_KEY, config.ProxyMaxRequestBodyBytes))
	}

	if config.HTTPReadTimeoutSeconds <= 0 || config.HTTPWriteTimeoutSeconds <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s or %s specified, must be greater than zero", HTTP_READ_TIMEOUT_ENVIRONMENT_KEY, HTTP_WRITE_TIMEOUT_ENVIRONMENT_KEY))
	}

	if _, err := regexp.Compile(config.RewriteURLPatternRaw); err != nil || config.RewriteURLPatternRaw == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be a non-empty regular expression", REWRITE_URL_PATTERN_ENVIRONMENT_KEY, config.RewriteURLPatternRaw))
	}

	if config.RewriteTargetProductID == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified, must not be empty", REWRITE_TARGET_PRODUCT_ID_ENVIRONMENT_KEY))
	}

	if config.MetricDatabaseEnabled {
		if config.DatabaseEndpointURL == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified, must not be empty when %s is true", DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY, METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY))
		}
		if config.DatabaseName == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified, must not be empty when %s is true", DATABASE_NAME_ENVIRONMENT_KEY, METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY))
		}
		if config.DatabaseUserName == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified, must not be empty when %s is true", DATABASE_USERNAME_ENVIRONMENT_KEY, METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY))
		}
		if config.DatabaseConnectMaxRetries < 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must not be negative", DATABASE_CONNECT_MAX_RETRIES_ENVIRONMENT_KEY, config.DatabaseConnectMaxRetries))
		}
	}

	if config.MetricPruningEnabled {
		if !config.MetricDatabaseEnabled {
			allErrs = errors.Join(allErrs, fmt.Errorf("%s requires %s", METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY))
		}
		if config.MetricPruningRoutineInterval <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, config.MetricPruningRoutineInterval))
		}
		if config.MetricPruningMaxRewriteMetricsHistory <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be greater than zero", METRIC_PRUNING_MAX_REWRITE_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY, config.MetricPruningMaxRewriteMetricsHistory))
		}
	}

	if config.RewriteOutcomeTTL <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", REWRITE_OUTCOME_TTL_SECONDS_ENVIRONMENT_KEY, config.RewriteOutcomeTTL))
	}
	if strings.Contains(config.CachePrefix, ":") {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not contain colon symbol", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
	}
	if config.CachePrefix == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
	}

	return allErrs
}
