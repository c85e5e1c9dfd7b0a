// package cache provides the key value storage used by the proxy service
// for short lived records such as rewrite outcomes
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("value not found in the cache")

// NoExpiration can be passed as the expiration of Set
// for values that should never expire
const NoExpiration = time.Duration(-1)

type Cache interface {
	Set(ctx context.Context, key string, data []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Healthcheck(ctx context.Context) error
}
