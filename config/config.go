// package config provides functions and values
// for reading and validating body rewrite proxy configuration
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kava-labs/body-rewrite-proxy/rewrite"
)

type Config struct {
	LogLevel                              string
	ProxyServicePort                      string
	ProxyBackendHostURLMapRaw             string
	ProxyBackendHostURLMapParsed          map[string]url.URL
	ProxyMaxRequestBodyBytes              int64
	HTTPReadTimeoutSeconds                int64
	HTTPWriteTimeoutSeconds               int64
	RewriteURLPatternRaw                  string
	RewriteURLPattern                     *regexp.Regexp
	RewriteTargetProductID                string
	RewriteTargetProductName              string
	MetricDatabaseEnabled                 bool
	DatabaseName                          string
	DatabaseEndpointURL                   string
	DatabaseUserName                      string
	DatabasePassword                      string
	DatabaseReadTimeoutSeconds            int64
	DatabaseMaxIdleConnections            int64
	DatabaseConnectionMaxIdleSeconds      int64
	DatabaseMaxOpenConnections            int64
	DatabaseSSLEnabled                    bool
	DatabaseQueryLoggingEnabled           bool
	RunDatabaseMigrations                 bool
	DatabaseConnectMaxRetries             int64
	MetricPruningEnabled                  bool
	MetricPruningRoutineInterval          time.Duration
	MetricPruningRoutineDelayFirstRun     time.Duration
	MetricPruningMaxRewriteMetricsHistory int64
	RewriteOutcomeCacheEnabled            bool
	RedisEndpointURL                      string
	RedisPassword                         string
	RewriteOutcomeTTL                     time.Duration
	CachePrefix                           string
}

const (
	LOG_LEVEL_ENVIRONMENT_KEY                                        = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                                = "INFO"
	PROXY_SERVICE_PORT_ENVIRONMENT_KEY                               = "PROXY_SERVICE_PORT"
	DEFAULT_PROXY_SERVICE_PORT                                       = "7777"
	PROXY_BACKEND_HOST_URL_MAP_ENVIRONMENT_KEY                       = "PROXY_BACKEND_HOST_URL_MAP"
	PROXY_MAX_REQUEST_BODY_BYTES_ENVIRONMENT_KEY                     = "PROXY_MAX_REQUEST_BODY_BYTES"
	DEFAULT_PROXY_MAX_REQUEST_BODY_BYTES                             = 10 << 20
	HTTP_READ_TIMEOUT_ENVIRONMENT_KEY                                = "HTTP_READ_TIMEOUT_SECONDS"
	DEFAULT_HTTP_READ_TIMEOUT                                        = 30
	HTTP_WRITE_TIMEOUT_ENVIRONMENT_KEY                               = "HTTP_WRITE_TIMEOUT_SECONDS"
	DEFAULT_HTTP_WRITE_TIMEOUT                                       = 60
	REWRITE_URL_PATTERN_ENVIRONMENT_KEY                              = "REWRITE_URL_PATTERN"
	DEFAULT_REWRITE_URL_PATTERN                                      = `^https://cap\.chinaunicom\.cn/cap/auc/proinfoauth/`
	REWRITE_TARGET_PRODUCT_ID_ENVIRONMENT_KEY                        = "REWRITE_TARGET_PRODUCT_ID"
	REWRITE_TARGET_PRODUCT_NAME_ENVIRONMENT_KEY                      = "REWRITE_TARGET_PRODUCT_NAME"
	METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY                          = "METRIC_DATABASE_ENABLED"
	DATABASE_NAME_ENVIRONMENT_KEY                                    = "DATABASE_NAME"
	DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY                            = "DATABASE_ENDPOINT_URL"
	DATABASE_USERNAME_ENVIRONMENT_KEY                                = "DATABASE_USERNAME"
	DATABASE_PASSWORD_ENVIRONMENT_KEY                                = "DATABASE_PASSWORD"
	DATABASE_SSL_ENABLED_ENVIRONMENT_KEY                             = "DATABASE_SSL_ENABLED"
	DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY                   = "DATABASE_QUERY_LOGGING_ENABLED"
	DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY                    = "DATABASE_READ_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_READ_TIMEOUT_SECONDS                            = 60
	DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY                    = "DATABASE_MAX_IDLE_CONNECTIONS"
	DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS                            = 5
	DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY             = "DATABASE_CONNECTION_MAX_IDLE_SECONDS"
	DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS                     = 5
	DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY                    = "DATABASE_MAX_OPEN_CONNECTIONS"
	DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS                            = 20
	RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY                          = "RUN_DATABASE_MIGRATIONS"
	DATABASE_CONNECT_MAX_RETRIES_ENVIRONMENT_KEY                     = "DATABASE_CONNECT_MAX_RETRIES"
	DEFAULT_DATABASE_CONNECT_MAX_RETRIES                             = 5
	METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY                           = "METRIC_PRUNING_ENABLED"
	METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY          = "METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS                  = 86400
	METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_ENVIRONMENT_KEY   = "METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS           = 10
	METRIC_PRUNING_MAX_REWRITE_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY = "METRIC_PRUNING_MAX_REWRITE_METRICS_HISTORY_DAYS"
	DEFAULT_METRIC_PRUNING_MAX_REWRITE_METRICS_HISTORY_DAYS         = 45
	REWRITE_OUTCOME_CACHE_ENABLED_ENVIRONMENT_KEY                    = "REWRITE_OUTCOME_CACHE_ENABLED"
	REDIS_ENDPOINT_URL_ENVIRONMENT_KEY                               = "REDIS_ENDPOINT_URL"
	REDIS_PASSWORD_ENVIRONMENT_KEY                                   = "REDIS_PASSWORD"
	REWRITE_OUTCOME_TTL_SECONDS_ENVIRONMENT_KEY                      = "REWRITE_OUTCOME_TTL_SECONDS"
	DEFAULT_REWRITE_OUTCOME_TTL_SECONDS                              = 600
	CACHE_PREFIX_ENVIRONMENT_KEY                                     = "CACHE_PREFIX"
	DEFAULT_CACHE_PREFIX                                             = "body-rewrite-proxy"
)

var ErrEmptyHostMap = errors.New("backend host url map is empty")

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultInt64 fetches an environment variable value parsed as an int64,
// or if not set or not a number returns the fallback value
func EnvOrDefaultInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultBool fetches an environment variable value parsed as a bool,
// or if not set or not a boolean returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// ParseRawProxyBackendHostURLMap attempts to parse mappings
// of hostname to backend url from the comma separated list
// e.g. "cap.localhost>https://cap.chinaunicom.cn,api.localhost>http://127.0.0.1:8080",
// returning the mapping and error (if any)
func ParseRawProxyBackendHostURLMap(raw string) (map[string]url.URL, error) {
	hostURLMap := map[string]url.URL{}

	if strings.TrimSpace(raw) == "" {
		return hostURLMap, ErrEmptyHostMap
	}

	for _, entry := range strings.Split(raw, ",") {
		hostAndBackend := strings.SplitN(strings.TrimSpace(entry), ">", 2)

		if len(hostAndBackend) != 2 || hostAndBackend[0] == "" || hostAndBackend[1] == "" {
			return hostURLMap, fmt.Errorf("expected host to backend mapping like <host>><backend-url>, got %s", entry)
		}

		backendURL, err := url.Parse(hostAndBackend[1])
		if err != nil {
			return hostURLMap, fmt.Errorf("invalid backend url %s for host %s: %w", hostAndBackend[1], hostAndBackend[0], err)
		}

		if backendURL.Scheme == "" || backendURL.Host == "" {
			return hostURLMap, fmt.Errorf("backend url %s for host %s must include scheme and host", hostAndBackend[1], hostAndBackend[0])
		}

		hostURLMap[hostAndBackend[0]] = *backendURL
	}

	return hostURLMap, nil
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	rawProxyBackendHostURLMap := os.Getenv(PROXY_BACKEND_HOST_URL_MAP_ENVIRONMENT_KEY)
	// best effort to parse, callers are responsible for validating
	// before using any values read
	parsedProxyBackendHostURLMap, _ := ParseRawProxyBackendHostURLMap(rawProxyBackendHostURLMap)

	rawRewriteURLPattern := EnvOrDefault(REWRITE_URL_PATTERN_ENVIRONMENT_KEY, DEFAULT_REWRITE_URL_PATTERN)
	rewriteURLPattern, _ := regexp.Compile(rawRewriteURLPattern)

	return Config{
		LogLevel:                              EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		ProxyServicePort:                      EnvOrDefault(PROXY_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_PROXY_SERVICE_PORT),
		ProxyBackendHostURLMapRaw:             rawProxyBackendHostURLMap,
		ProxyBackendHostURLMapParsed:          parsedProxyBackendHostURLMap,
		ProxyMaxRequestBodyBytes:              EnvOrDefaultInt64(PROXY_MAX_REQUEST_BODY_BYTES_ENVIRONMENT_KEY, DEFAULT_PROXY_MAX_REQUEST_BODY_BYTES),
		HTTPReadTimeoutSeconds:                EnvOrDefaultInt64(HTTP_READ_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_HTTP_READ_TIMEOUT),
		HTTPWriteTimeoutSeconds:               EnvOrDefaultInt64(HTTP_WRITE_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_HTTP_WRITE_TIMEOUT),
		RewriteURLPatternRaw:                  rawRewriteURLPattern,
		RewriteURLPattern:                     rewriteURLPattern,
		RewriteTargetProductID:                EnvOrDefault(REWRITE_TARGET_PRODUCT_ID_ENVIRONMENT_KEY, rewrite.DefaultTargetProductID),
		RewriteTargetProductName:              EnvOrDefault(REWRITE_TARGET_PRODUCT_NAME_ENVIRONMENT_KEY, rewrite.DefaultTargetProductName),
		MetricDatabaseEnabled:                 EnvOrDefaultBool(METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseName:                          os.Getenv(DATABASE_NAME_ENVIRONMENT_KEY),
		DatabaseEndpointURL:                   os.Getenv(DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY),
		DatabaseUserName:                      os.Getenv(DATABASE_USERNAME_ENVIRONMENT_KEY),
		DatabasePassword:                      os.Getenv(DATABASE_PASSWORD_ENVIRONMENT_KEY),
		DatabaseReadTimeoutSeconds:            EnvOrDefaultInt64(DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_READ_TIMEOUT_SECONDS),
		DatabaseMaxIdleConnections:            EnvOrDefaultInt64(DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS),
		DatabaseConnectionMaxIdleSeconds:      EnvOrDefaultInt64(DATABASE_CONNECTION_MAX_IDLE_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_CONNECTION_MAX_IDLE_SECONDS),
		DatabaseMaxOpenConnections:            EnvOrDefaultInt64(DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS),
		DatabaseSSLEnabled:                    EnvOrDefaultBool(DATABASE_SSL_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseQueryLoggingEnabled:           EnvOrDefaultBool(DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY, false),
		RunDatabaseMigrations:                 EnvOrDefaultBool(RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY, false),
		DatabaseConnectMaxRetries:             EnvOrDefaultInt64(DATABASE_CONNECT_MAX_RETRIES_ENVIRONMENT_KEY, DEFAULT_DATABASE_CONNECT_MAX_RETRIES),
		MetricPruningEnabled:                  EnvOrDefaultBool(METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, false),
		MetricPruningRoutineInterval:          time.Duration(EnvOrDefaultInt64(METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)) * time.Second,
		MetricPruningRoutineDelayFirstRun:     time.Duration(EnvOrDefaultInt64(METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS)) * time.Second,
		MetricPruningMaxRewriteMetricsHistory: EnvOrDefaultInt64(METRIC_PRUNING_MAX_REWRITE_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_MAX_REWRITE_METRICS_HISTORY_DAYS),
		RewriteOutcomeCacheEnabled:            EnvOrDefaultBool(REWRITE_OUTCOME_CACHE_ENABLED_ENVIRONMENT_KEY, false),
		RedisEndpointURL:                      os.Getenv(REDIS_ENDPOINT_URL_ENVIRONMENT_KEY),
		RedisPassword:                         os.Getenv(REDIS_PASSWORD_ENVIRONMENT_KEY),
		RewriteOutcomeTTL:                     time.Duration(EnvOrDefaultInt64(REWRITE_OUTCOME_TTL_SECONDS_ENVIRONMENT_KEY, DEFAULT_REWRITE_OUTCOME_TTL_SECONDS)) * time.Second,
		CachePrefix:                           EnvOrDefault(CACHE_PREFIX_ENVIRONMENT_KEY, DEFAULT_CACHE_PREFIX),
	}
}
