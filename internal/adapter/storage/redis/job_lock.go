package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// JobLock keeps a scheduled sweep from running on more than one worker at a
// time. It is a SET NX lease that expires on its own if the holder dies.
type JobLock struct {
	client *goredis.Client
	prefix string
	owner  string
}

// NewJobLock creates a lock whose leases are tagged with owner (typically the
// host name) so only the holder can release them.
func NewJobLock(client *goredis.Client, owner string) *JobLock {
	return &JobLock{
		client: client,
		prefix: "mkt:job:",
		owner:  owner,
	}
}

// TryAcquire takes the lease for job. Returns false if another worker holds it.
func (l *JobLock) TryAcquire(ctx context.Context, job string, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.prefix+job, l.owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis job lock acquire: %w", err)
	}
	return result == "OK", nil
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Release drops the lease if this owner still holds it.
func (l *JobLock) Release(ctx context.Context, job string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + job}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis job lock release: %w", err)
	}
	return nil
}
