package postgres

import (
	"context"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
)

const (
	RewriteMetricsTableName = "rewrite_metrics"
)

// SaveRewriteMetric saves the metric to the database, returning error (if any)
func (c *Client) SaveRewriteMetric(ctx context.Context, metric *database.RewriteMetric) error {
	if c.db == nil {
		return ErrNoDatabase
	}

	rm := convertRewriteMetric(metric)
	_, err := c.db.NewInsert().Model(rm).Exec(ctx)
	if err != nil {
		return err
	}

	metric.ID = rm.ID

	return nil
}

// ListRewriteMetricsWithPagination returns a page of max
// `limit` RewriteMetrics from the offset specified by `cursor`
// error (if any) along with a cursor to use to fetch the next page
// if the cursor is 0 no more pages exists.
func (c *Client) ListRewriteMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.RewriteMetric, int64, error) {
	if c.db == nil {
		return nil, 0, ErrNoDatabase
	}

	var rewriteMetrics []RewriteMetric
	var nextCursor int64

	err := c.db.NewSelect().Model(&rewriteMetrics).Where("id > ?", cursor).Order("id ASC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	// a full page means there may be more rows after the last id
	if limit > 0 && len(rewriteMetrics) == limit {
		nextCursor = rewriteMetrics[len(rewriteMetrics)-1].ID
	}

	metrics := make([]*database.RewriteMetric, 0, len(rewriteMetrics))
	for _, metric := range rewriteMetrics {
		metrics = append(metrics, metric.ToRewriteMetric())
	}

	return metrics, nextCursor, nil
}

// DeleteRewriteMetricsOlderThanNDays deletes
// all rewrite metrics older than the specified
// days, returning error (if any).
// Used during pruning process.
func (c *Client) DeleteRewriteMetricsOlderThanNDays(ctx context.Context, n int64) error {
	if c.db == nil {
		return ErrNoDatabase
	}

	_, err := c.db.NewDelete().Model((*RewriteMetric)(nil)).Where("request_time < now() - interval '1 day' * ?", n).Exec(ctx)

	return err
}
