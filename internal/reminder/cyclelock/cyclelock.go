// Package cyclelock provides a best-effort Redis lease so two deployments
// pointed at the same store do not run overlapping reminder cycles. It is a
// guard rail, not a correctness mechanism: the service still assumes a
// single active controller (see the controller docs).
package cyclelock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "remindly/pkg/domain-errors"
)

const lockKey = "remindly:cycle-lock"

// releaseScript deletes the lease only if it still holds our token, so an
// expired lease taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lock with a TTL backstop against crashed holders.
type Lease struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a lease with the given TTL. The TTL should comfortably exceed
// the longest expected cycle.
func New(client *redis.Client, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Lease{client: client, ttl: ttl}
}

// Acquire tries to take the lease. On success it returns a release func the
// caller must invoke when the cycle finishes. ok=false means another holder
// has the lease.
func (l *Lease) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire cycle lease")
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// Best effort; TTL reclaims the lease if this fails.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Result()
	}
	return release, true, nil
}
