package ratelimit

import (
	"context"
	"time"
)

// Bucket identifies what kind of action is being limited.
type Bucket string

const (
	BucketCreateBooking Bucket = "create_booking"
	BucketCreateSeries  Bucket = "create_series"
	BucketJoinWaitlist  Bucket = "join_waitlist"
)

// Decision is the outcome of a limit check. RetryAfter is only meaningful
// when Allowed is false.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the rate-limiting collaborator consumed by the booking
// lifecycle. A denied check surfaces to callers as TooManyRequests with
// the retry-after hint.
type Limiter interface {
	CheckLimit(ctx context.Context, actorKey string, bucket Bucket) (Decision, error)
}

// BucketConfig sets the allowance for one bucket kind.
type BucketConfig struct {
	Limit  int
	Window time.Duration
}

// DefaultBuckets returns the stock per-actor allowances.
func DefaultBuckets() map[Bucket]BucketConfig {
	return map[Bucket]BucketConfig{
		BucketCreateBooking: {Limit: 20, Window: time.Hour},
		BucketCreateSeries:  {Limit: 5, Window: time.Hour},
		BucketJoinWaitlist:  {Limit: 10, Window: time.Hour},
	}
}
