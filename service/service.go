// package service provides functions and methods
// for creating and running the api of the proxy service
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kava-labs/body-rewrite-proxy/clients/cache"
	"github.com/kava-labs/body-rewrite-proxy/clients/database"
	"github.com/kava-labs/body-rewrite-proxy/clients/database/noop"
	"github.com/kava-labs/body-rewrite-proxy/clients/database/postgres"
	"github.com/kava-labs/body-rewrite-proxy/clients/database/postgres/migrations"
	"github.com/kava-labs/body-rewrite-proxy/config"
	"github.com/kava-labs/body-rewrite-proxy/logging"
	"github.com/kava-labs/body-rewrite-proxy/rewrite"
	"github.com/kava-labs/body-rewrite-proxy/service/outcomemdw"
)

// ProxyService represents an instance of the proxy service API
type ProxyService struct {
	Database    database.MetricsDatabase
	Outcomes    *outcomemdw.ServiceOutcomes
	Rewriter    *rewrite.Rewriter
	cacheClient cache.Cache
	httpProxy   *http.Server
	*logging.ServiceLogger
}

// New returns a new ProxyService with the specified config and error (if any)
func New(ctx context.Context, config config.Config, serviceLogger *logging.ServiceLogger) (ProxyService, error) {
	service := ProxyService{
		ServiceLogger: serviceLogger,
	}

	db, err := createDatabaseClient(ctx, config, serviceLogger)
	if err != nil {
		return ProxyService{}, err
	}

	cacheClient, err := createCacheClient(config, serviceLogger)
	if err != nil {
		return ProxyService{}, err
	}

	service.Database = db
	service.cacheClient = cacheClient
	service.Outcomes = outcomemdw.NewServiceOutcomes(
		cacheClient,
		RequestIDContextKey,
		RewriteResultContextKey,
		config.CachePrefix,
		config.RewriteOutcomeTTL,
		config.RewriteOutcomeCacheEnabled,
		serviceLogger,
	)
	service.Rewriter = rewrite.New(rewrite.Config{
		TargetProductID:   config.RewriteTargetProductID,
		TargetProductName: config.RewriteTargetProductName,
	}, serviceLogger)

	// create an http router for registering handlers for a given route
	mux := http.NewServeMux()

	proxies := NewProxies(config, serviceLogger)

	// create the middleware chain for intercepting, rewriting and proxying
	// requests, running in the reverse order they are created here:
	// request logging -> body rewrite -> pending outcome -> proxy -> outcome recording -> finalizer
	afterProxyFinalizer := createAfterProxyFinalizer(service.Database, serviceLogger)

	outcomeRecordingMiddleware := service.Outcomes.RecordingMiddleware(afterProxyFinalizer)

	proxyMiddleware := createProxyRequestMiddleware(outcomeRecordingMiddleware, proxies, serviceLogger)

	pendingOutcomeMiddleware := service.Outcomes.PendingRecordingMiddleware(proxyMiddleware)

	bodyRewriteMiddleware := createBodyRewriteMiddleware(pendingOutcomeMiddleware, config, proxies, service.Rewriter, serviceLogger)

	requestLoggingMiddleware := createRequestLoggingMiddleware(bodyRewriteMiddleware, serviceLogger)

	// register proxy handler as the default handler for any request
	mux.HandleFunc("/", requestLoggingMiddleware)

	// register healthcheck handler that can be used during deployment and operations
	// to determine if the service is ready to receive requests
	mux.HandleFunc(HealthcheckPath, createHealthcheckHandler(&service))

	// register servicecheck handler that can be used during deployment and operations
	// to determine if the service is ready to receive requests
	mux.HandleFunc(ServicecheckPath, createServicecheckHandler(&service))

	// register outcome handler for looking up what was done to a given request
	mux.HandleFunc(RewriteOutcomePath, createRewriteOutcomeHandler(&service))

	// create an http server for the caller to start on demand with a call to ProxyService.Run()
	service.httpProxy = &http.Server{
		Addr:         fmt.Sprintf(":%s", config.ProxyServicePort),
		Handler:      mux,
		ReadTimeout:  time.Duration(config.HTTPReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(config.HTTPWriteTimeoutSeconds) * time.Second,
	}

	return service, nil
}

// createDatabaseClient returns a postgres client that has passed a health check
// (and has had any pending migrations run if configured to do so) when the
// metric database is enabled, or a no-op database otherwise
func createDatabaseClient(ctx context.Context, config config.Config, logger *logging.ServiceLogger) (database.MetricsDatabase, error) {
	if !config.MetricDatabaseEnabled {
		logger.Info().Msg("metric database disabled, rewrite metrics will not be stored")
		return noop.New(), nil
	}

	serviceDatabase, err := postgres.NewClient(postgres.DatabaseConfig{
		DatabaseName:                     config.DatabaseName,
		DatabaseEndpointURL:              config.DatabaseEndpointURL,
		DatabaseUsername:                 config.DatabaseUserName,
		DatabasePassword:                 config.DatabasePassword,
		ReadTimeoutSeconds:               config.DatabaseReadTimeoutSeconds,
		DatabaseMaxIdleConnections:       config.DatabaseMaxIdleConnections,
		DatabaseConnectionMaxIdleSeconds: config.DatabaseConnectionMaxIdleSeconds,
		DatabaseMaxOpenConnections:       config.DatabaseMaxOpenConnections,
		SSLEnabled:                       config.DatabaseSSLEnabled,
		QueryLoggingEnabled:              config.DatabaseQueryLoggingEnabled,
		Logger:                           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating database client: %w", err)
	}

	// the database may still be starting up alongside the service
	retryPolicy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(config.DatabaseConnectMaxRetries)),
		ctx,
	)

	err = backoff.Retry(func() error {
		healthErr := serviceDatabase.HealthCheck()
		if healthErr != nil {
			logger.Debug().Msg(fmt.Sprintf("unable to connect to database: %v, retrying", healthErr))
		}
		return healthErr
	}, retryPolicy)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database after %d retries: %w", config.DatabaseConnectMaxRetries, err)
	}

	if config.RunDatabaseMigrations {
		logger.Debug().Msg("running migrations on database")

		migrationCtx, cancel := context.WithTimeout(ctx, 1*time.Minute)
		defer cancel()

		_, err := serviceDatabase.Migrate(migrationCtx, *migrations.Migrations)
		if err != nil {
			return nil, fmt.Errorf("error running migrations on database: %w", err)
		}

		logger.Debug().Msg("migrations ran successfully")
	}

	return serviceDatabase, nil
}

// createCacheClient returns a redis cache when a redis endpoint is
// configured and an in process cache otherwise
func createCacheClient(config config.Config, logger *logging.ServiceLogger) (cache.Cache, error) {
	if config.RedisEndpointURL == "" {
		logger.Debug().Msg("no redis endpoint configured, using in memory cache")
		return cache.NewInMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Address:  config.RedisEndpointURL,
		Password: config.RedisPassword,
		DB:       0,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating redis cache: %w", err)
	}

	return redisCache, nil
}

// Handler returns the http handler serving the proxy service API
func (p *ProxyService) Handler() http.Handler {
	return p.httpProxy.Handler
}

// Run runs the proxy service, returning error (if any) in the event
// the proxy service stops
func (p *ProxyService) Run() error {
	return p.httpProxy.ListenAndServe()
}

// Shutdown gracefully stops the proxy service, waiting for in flight
// requests to finish before closing connections to the database and cache
func (p *ProxyService) Shutdown(ctx context.Context) error {
	err := p.httpProxy.Shutdown(ctx)

	for _, dependency := range []any{p.Database, p.cacheClient} {
		if closer, ok := dependency.(io.Closer); ok {
			err = errors.Join(err, closer.Close())
		}
	}

	return err
}
