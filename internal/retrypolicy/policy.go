// Package retrypolicy wraps avast/retry-go into the two explicit retry
// policy objects used across the saga: one for gateway calls, one
// for message-handling retries.
package retrypolicy

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

// Policy is an exponential backoff schedule: Base, doubling each
// attempt, capped at Max, for at most MaxAttempts tries. Do always
// doubles (retry-go's BackOffDelay); Multiplier records that factor
// and is not read by Do.
type Policy struct {
	Base        time.Duration
	Multiplier  float64
	Max         time.Duration
	MaxAttempts uint
}

// GatewayPolicy is the Payment participant's gateway-call policy:
// base 2s, x2, capped at 10s, 3 attempts.
func GatewayPolicy() Policy {
	return Policy{Base: 2 * time.Second, Multiplier: 2, Max: 10 * time.Second, MaxAttempts: 3}
}

// HandlerPolicy is the bus consumer's message-handling policy:
// base 2s, x2, capped at 30s, 3 attempts.
func HandlerPolicy() Policy {
	return Policy{Base: 2 * time.Second, Multiplier: 2, Max: 30 * time.Second, MaxAttempts: 3}
}

// Do runs fn, retrying on error according to policy. It blocks the
// calling goroutine for the duration of the backoff rather than
// returning early to force bus redelivery, so the shard worker holds
// the message in place.
func Do(ctx context.Context, log zerolog.Logger, policy Policy, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(policy.MaxAttempts),
		retry.Delay(policy.Base),
		retry.MaxDelay(policy.Max),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Uint("attempt", n+1).Err(err).Msg("retrying after handler error")
		}),
	)
}
