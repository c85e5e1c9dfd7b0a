package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
)

// RewriteMetric is the bun model for a row of the rewrite metrics table
type RewriteMetric struct {
	bun.BaseModel `bun:"table:rewrite_metrics,alias:rm"`

	ID                          int64  `bun:",pk,autoincrement"`
	RequestID                   string `bun:"request_id"`
	Hostname                    string
	Path                        string
	Outcome                     string
	ProductIDReplaced           bool    `bun:"product_id_replaced"`
	PreviousProductID           *string `bun:"previous_product_id"`
	ResponseStatus              int
	ResponseLatencyMilliseconds int64
	RequestTime                 time.Time
}

func (rm *RewriteMetric) ToRewriteMetric() *database.RewriteMetric {
	return &database.RewriteMetric{
		ID:                          rm.ID,
		RequestID:                   rm.RequestID,
		Hostname:                    rm.Hostname,
		Path:                        rm.Path,
		Outcome:                     rm.Outcome,
		ProductIDReplaced:           rm.ProductIDReplaced,
		PreviousProductID:           rm.PreviousProductID,
		ResponseStatus:              rm.ResponseStatus,
		ResponseLatencyMilliseconds: rm.ResponseLatencyMilliseconds,
		RequestTime:                 rm.RequestTime,
	}
}

func convertRewriteMetric(metric *database.RewriteMetric) *RewriteMetric {
	return &RewriteMetric{
		ID:                          metric.ID,
		RequestID:                   metric.RequestID,
		Hostname:                    metric.Hostname,
		Path:                        metric.Path,
		Outcome:                     metric.Outcome,
		ProductIDReplaced:           metric.ProductIDReplaced,
		PreviousProductID:           metric.PreviousProductID,
		ResponseStatus:              metric.ResponseStatus,
		ResponseLatencyMilliseconds: metric.ResponseLatencyMilliseconds,
		RequestTime:                 metric.RequestTime,
	}
}
