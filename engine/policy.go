package engine

import (
	"math/rand"
	"time"
)

// NodePolicy configures execution behavior for a single node: timeout
// and retry strategy. If unset, the engine's Options defaults apply.
type NodePolicy struct {
	Timeout     time.Duration
	RetryPolicy *RetryPolicy
}

// RetryPolicy governs how a node reacts to a handler-returned
// ActionResult{Kind: ResultRetry}: exponential backoff with jitter,
// capped, up to MaxAttempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// computeBackoff returns the delay before the next retry attempt,
// following base * 2^attempt capped at maxDelay, plus jitter in
// [0, base) to avoid synchronized retry storms across sibling nodes.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	if base <= 0 {
		return delay
	}
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry timing jitter, not security sensitive
	}
	return delay + jitter
}
