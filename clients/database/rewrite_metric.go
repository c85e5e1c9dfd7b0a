// package database defines the storage contract for metrics
// about requests handled by the body rewrite proxy
package database

import "time"

// RewriteMetric contains metrics for a single request
// that matched the rewrite url pattern and was proxied
type RewriteMetric struct {
	ID                          int64
	RequestID                   string
	Hostname                    string
	Path                        string
	Outcome                     string
	ProductIDReplaced           bool
	PreviousProductID           *string
	ResponseStatus              int
	ResponseLatencyMilliseconds int64
	RequestTime                 time.Time
}
