package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ClassAvailabilityKey returns the cache key for a class's advisory seat snapshot.
func (r *CacheKeyStruct) ClassAvailabilityKey(classID string) string {
	return fmt.Sprintf("class:%s:availability", classID)
}

// ClassSeatsChannel returns the Redis PubSub channel carrying seat snapshots for a class.
func (r *CacheKeyStruct) ClassSeatsChannel(classID string) string {
	return fmt.Sprintf("class:%s:seats", classID)
}

// ReserveRateKey returns the fixed-window counter key for a booker's reserve attempts.
func (r *CacheKeyStruct) ReserveRateKey(bookerID string, window int64) string {
	return fmt.Sprintf("ratelimit:reserve:%s:%d", bookerID, window)
}

var CacheKey = NewCacheKeyStruct()
