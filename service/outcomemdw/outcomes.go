package outcomemdw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kava-labs/body-rewrite-proxy/clients/cache"
	"github.com/kava-labs/body-rewrite-proxy/logging"
)

// RewriteOutcome represents the structure which is stored in the cache
// for every request that matched the rewrite url pattern
type RewriteOutcome struct {
	RequestID         string    `json:"request_id"`
	Hostname          string    `json:"hostname"`
	Path              string    `json:"path"`
	Outcome           string    `json:"outcome"`
	ProductIDReplaced bool      `json:"product_id_replaced"`
	PreviousProductID string    `json:"previous_product_id,omitempty"`
	NewProductID      string    `json:"new_product_id,omitempty"`
	ResponseStatus    int       `json:"response_status"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// ServiceOutcomes is responsible for recording rewrite outcomes and provides corresponding middleware
// ServiceOutcomes can work with any underlying storage which implements simple cache.Cache interface
type ServiceOutcomes struct {
	cacheClient             cache.Cache
	requestIDContextKey     any
	rewriteResultContextKey any
	// cachePrefix is used as prefix for any key in the cache
	cachePrefix string
	ttl         time.Duration
	enabled     bool

	*logging.ServiceLogger
}

func NewServiceOutcomes(
	cacheClient cache.Cache,
	requestIDContextKey any,
	rewriteResultContextKey any,
	cachePrefix string,
	ttl time.Duration,
	enabled bool,
	logger *logging.ServiceLogger,
) *ServiceOutcomes {
	return &ServiceOutcomes{
		cacheClient:             cacheClient,
		requestIDContextKey:     requestIDContextKey,
		rewriteResultContextKey: rewriteResultContextKey,
		cachePrefix:             cachePrefix,
		ttl:                     ttl,
		enabled:                 enabled,
		ServiceLogger:           logger,
	}
}

// IsEnabled reports whether outcomes are being recorded
func (o *ServiceOutcomes) IsEnabled() bool {
	return o.enabled
}

// RecordOutcome stores the outcome under its request id for the configured ttl
func (o *ServiceOutcomes) RecordOutcome(ctx context.Context, outcome RewriteOutcome) error {
	if !o.enabled {
		return ErrOutcomeRecordingDisabled
	}

	if outcome.RequestID == "" {
		return fmt.Errorf("can't record outcome without a request id")
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	return o.cacheClient.Set(ctx, GetOutcomeKey(o.cachePrefix, outcome.RequestID), data, o.ttl)
}

// GetOutcome returns the recorded outcome for the request with the given id
// or ErrOutcomeNotFound if no outcome was recorded or it already expired
func (o *ServiceOutcomes) GetOutcome(ctx context.Context, requestID string) (*RewriteOutcome, error) {
	if !o.enabled {
		return nil, ErrOutcomeRecordingDisabled
	}

	data, err := o.cacheClient.Get(ctx, GetOutcomeKey(o.cachePrefix, requestID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrOutcomeNotFound
		}

		return nil, err
	}

	var outcome RewriteOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("can't decode outcome for request %s: %w", requestID, err)
	}

	return &outcome, nil
}

// Healthcheck checks that the underlying cache is reachable
func (o *ServiceOutcomes) Healthcheck(ctx context.Context) error {
	return o.cacheClient.Healthcheck(ctx)
}
