package outcomemdw

import (
	"strings"
)

type CacheItemType int

const (
	CacheItemTypeRewriteOutcome CacheItemType = iota + 1
)

func (t CacheItemType) String() string {
	switch t {
	case CacheItemTypeRewriteOutcome:
		return "rewrite-outcome"
	default:
		return "unknown"
	}
}

func BuildCacheKey(cachePrefix string, cacheItemType CacheItemType, parts []string) string {
	fullParts := append(
		[]string{
			cachePrefix,
			cacheItemType.String(),
		},
		parts...,
	)

	return strings.Join(fullParts, ":")
}

// GetOutcomeKey returns the cache key the outcome
// of the request with the given id is stored under
func GetOutcomeKey(cachePrefix string, requestID string) string {
	return BuildCacheKey(cachePrefix, CacheItemTypeRewriteOutcome, []string{requestID})
}
