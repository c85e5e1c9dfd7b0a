// package routines provides configuration and logic
// for running background routines such as metric pruning
// for removing historical rewrite metrics
package routines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
	"github.com/kava-labs/body-rewrite-proxy/logging"
)

// MetricPruningRoutineConfig wraps values used
// for creating a new metric pruning routine
type MetricPruningRoutineConfig struct {
	Interval                time.Duration
	StartDelay              time.Duration
	MaxRewriteMetricHistory int64
	Database                database.MetricsDatabase
	Logger                  logging.ServiceLogger
}

// MetricPruningRoutine can be used to
// run a background routine on a configurable interval
// to prune historical rewrite metrics
type MetricPruningRoutine struct {
	id                      string
	interval                time.Duration
	startDelay              time.Duration
	maxRewriteMetricHistory int64
	db                      database.MetricsDatabase
	stop                    chan struct{}
	stopOnce                sync.Once
	logging.ServiceLogger
}

// Run runs the metric pruning routine for pruning historical
// rewrite metrics, returning error (if any) from starting the
// routine and an error channel which any errors
// encountered during running will be sent on
func (mpr *MetricPruningRoutine) Run() (<-chan error, error) {
	errorChannel := make(chan error, 1)

	go func() {
		defer close(errorChannel)

		select {
		case <-time.After(mpr.startDelay):
		case <-mpr.stop:
			return
		}

		mpr.prune(errorChannel)

		ticker := time.NewTicker(mpr.interval)
		defer ticker.Stop()

		for {
			select {
			case tick := <-ticker.C:
				mpr.Trace().Msg(fmt.Sprintf("%s tick at %+v", mpr.id, tick))

				mpr.prune(errorChannel)
			case <-mpr.stop:
				return
			}
		}
	}()

	return errorChannel, nil
}

// Stop stops the routine, the error channel returned by Run
// is closed once the routine has exited
func (mpr *MetricPruningRoutine) Stop() {
	mpr.stopOnce.Do(func() {
		close(mpr.stop)
	})
}

func (mpr *MetricPruningRoutine) prune(errorChannel chan<- error) {
	mpr.Debug().Msg(fmt.Sprintf("%s pruning rewrite metrics older than %d days", mpr.id, mpr.maxRewriteMetricHistory))

	err := mpr.db.DeleteRewriteMetricsOlderThanNDays(context.Background(), mpr.maxRewriteMetricHistory)
	if err == nil {
		return
	}

	select {
	case errorChannel <- fmt.Errorf("%s failed to prune rewrite metrics: %w", mpr.id, err):
	case <-mpr.stop:
	}
}

// NewMetricPruningRoutine creates a new metric pruning routine
// using the provided config, returning the routine and error (if any)
func NewMetricPruningRoutine(config MetricPruningRoutineConfig) (*MetricPruningRoutine, error) {
	if config.Database == nil {
		return nil, fmt.Errorf("metric pruning routine requires a database")
	}

	if config.Interval <= 0 {
		return nil, fmt.Errorf("metric pruning routine interval must be greater than zero, got %s", config.Interval)
	}

	return &MetricPruningRoutine{
		id:                      uuid.New().String(),
		interval:                config.Interval,
		startDelay:              config.StartDelay,
		maxRewriteMetricHistory: config.MaxRewriteMetricHistory,
		db:                      config.Database,
		stop:                    make(chan struct{}),
		ServiceLogger:           config.Logger,
	}, nil
}
