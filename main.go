// package main reads & validates configuration for the proxy service
// and if the config is valid starts and monitors an instance of the proxy service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kava-labs/body-rewrite-proxy/config"
	"github.com/kava-labs/body-rewrite-proxy/logging"
	"github.com/kava-labs/body-rewrite-proxy/routines"
	"github.com/kava-labs/body-rewrite-proxy/service"
)

var (
	serviceConfig config.Config
	serviceLogger logging.ServiceLogger
)

func init() {
	serviceConfig = config.ReadConfig()

	err := config.Validate(serviceConfig)

	if err != nil {
		panic(err)
	}

	serviceLogger, err = logging.New(serviceConfig.LogLevel)

	if err != nil {
		panic(err)
	}
}

func startMetricPruningRoutine(serviceConfig config.Config, service service.ProxyService, logger logging.ServiceLogger) *routines.MetricPruningRoutine {
	if !serviceConfig.MetricPruningEnabled {
		logger.Info().Msg("skipping starting metric pruning routine since it is disabled via config")

		return nil
	}

	metricPruningRoutineConfig := routines.MetricPruningRoutineConfig{
		Interval:                serviceConfig.MetricPruningRoutineInterval,
		StartDelay:              serviceConfig.MetricPruningRoutineDelayFirstRun,
		MaxRewriteMetricHistory: serviceConfig.MetricPruningMaxRewriteMetricsHistory,
		Database:                service.Database,
		Logger:                  logger,
	}

	metricPruningRoutine, err := routines.NewMetricPruningRoutine(metricPruningRoutineConfig)

	if err != nil {
		logger.Error().Msg(fmt.Sprintf("error %s creating metric pruning routine with config %+v", err, metricPruningRoutineConfig))

		return nil
	}

	errChan, err := metricPruningRoutine.Run()

	if err != nil {
		logger.Error().Msg(fmt.Sprintf("error %s starting metric pruning routine", err))

		return nil
	}

	go func() {
		for routineErr := range errChan {
			logger.Error().Msg(fmt.Sprintf("metric pruning routine encountered error %s", routineErr))
		}
	}()

	return metricPruningRoutine
}

func main() {
	// the config carries database and redis credentials
	serviceLogger.Debug().
		Str("backends", serviceConfig.ProxyBackendHostURLMapRaw).
		Str("rewrite_url_pattern", serviceConfig.RewriteURLPatternRaw).
		Str("target_product_id", serviceConfig.RewriteTargetProductID).
		Msg("initial config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := service.New(ctx, serviceConfig, &serviceLogger)

	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}

	metricPruningRoutine := startMetricPruningRoutine(serviceConfig, service, serviceLogger)

	go func() {
		<-ctx.Done()

		serviceLogger.Info().Msg("shutting down proxy service")

		if metricPruningRoutine != nil {
			metricPruningRoutine.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := service.Shutdown(shutdownCtx); err != nil {
			serviceLogger.Error().Msg(fmt.Sprintf("error %s shutting down proxy service", err))
		}
	}()

	serviceLogger.Info().Msg(fmt.Sprintf("proxy service listening on port %s", serviceConfig.ProxyServicePort))

	if err := service.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}
}
