package utils

import (
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	return "run-" + timestamp + "-" + uuid.NewString()[:8]
}

// TimestampSuffix returns an integer in [0, 1e8) derived from the current time
// at 10ns resolution. It is used to disambiguate result files written by
// concurrent tasks.
func TimestampSuffix() int64 {
	return TimestampSuffixAt(time.Now())
}

// TimestampSuffixAt is TimestampSuffix for a fixed instant
func TimestampSuffixAt(t time.Time) int64 {
	return (t.UnixNano() / 10) % 100_000_000
}
