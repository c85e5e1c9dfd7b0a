package routines

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
	"github.com/kava-labs/body-rewrite-proxy/clients/database/noop"
	"github.com/kava-labs/body-rewrite-proxy/logging"
)

type recordingDatabase struct {
	noop.Noop

	mu       sync.Mutex
	deletes  []int64
	failWith error
}

func (d *recordingDatabase) DeleteRewriteMetricsOlderThanNDays(ctx context.Context, n int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deletes = append(d.deletes, n)

	return d.failWith
}

func (d *recordingDatabase) deleteCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.deletes)
}

var _ database.MetricsDatabase = (*recordingDatabase)(nil)

func testLogger(t *testing.T) logging.ServiceLogger {
	t.Helper()

	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	return logger
}

func TestUnitTestNewMetricPruningRoutineValidatesConfig(t *testing.T) {
	_, err := NewMetricPruningRoutine(MetricPruningRoutineConfig{
		Interval: time.Second,
		Logger:   testLogger(t),
	})
	assert.Error(t, err)

	_, err = NewMetricPruningRoutine(MetricPruningRoutineConfig{
		Database: noop.New(),
		Logger:   testLogger(t),
	})
	assert.Error(t, err)
}

func TestUnitTestMetricPruningRoutineRunsOnConfiguredInterval(t *testing.T) {
	db := &recordingDatabase{}

	routine, err := NewMetricPruningRoutine(MetricPruningRoutineConfig{
		Interval:                5 * time.Millisecond,
		StartDelay:              time.Millisecond,
		MaxRewriteMetricHistory: 45,
		Database:                db,
		Logger:                  testLogger(t),
	})
	require.NoError(t, err)

	errs, err := routine.Run()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return db.deleteCount() >= 3
	}, time.Second, time.Millisecond)

	routine.Stop()

	// channel is closed once the routine exits
	for range errs {
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, days := range db.deletes {
		assert.Equal(t, int64(45), days)
	}
}

func TestUnitTestMetricPruningRoutineReportsErrors(t *testing.T) {
	db := &recordingDatabase{failWith: errors.New("database unavailable")}

	routine, err := NewMetricPruningRoutine(MetricPruningRoutineConfig{
		Interval:                time.Hour,
		MaxRewriteMetricHistory: 1,
		Database:                db,
		Logger:                  testLogger(t),
	})
	require.NoError(t, err)

	errs, err := routine.Run()
	require.NoError(t, err)

	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "database unavailable")
	case <-time.After(time.Second):
		t.Fatal("expected pruning error")
	}

	routine.Stop()
	routine.Stop()
}

func TestUnitTestMetricPruningRoutineStopsBeforeFirstRun(t *testing.T) {
	db := &recordingDatabase{}

	routine, err := NewMetricPruningRoutine(MetricPruningRoutineConfig{
		Interval:   time.Hour,
		StartDelay: time.Hour,
		Database:   db,
		Logger:     testLogger(t),
	})
	require.NoError(t, err)

	errs, err := routine.Run()
	require.NoError(t, err)

	routine.Stop()

	_, open := <-errs
	assert.False(t, open)
	assert.Zero(t, db.deleteCount())
}
