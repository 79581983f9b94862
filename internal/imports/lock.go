package imports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockbook/internal/shared"
)

// Locker serializes import runs per organization.
type Locker interface {
	Acquire(ctx context.Context, orgID string) (release func(context.Context), err error)
}

// TenantLock is a Redis SET NX lease keyed by organization.
type TenantLock struct {
	client *redis.Client
	ttl    time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// NewTenantLock builds a TenantLock whose lease expires after ttl.
func NewTenantLock(client *redis.Client, ttl time.Duration) *TenantLock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TenantLock{client: client, ttl: ttl}
}

// Acquire takes the lease or returns ErrImportInProgress. The lease is renewed every third
// of its TTL until release, so long runs keep it. Release only deletes the key while this
// holder still owns it.
func (l *TenantLock) Acquire(ctx context.Context, orgID string) (func(context.Context), error) {
	key := shared.ImportLockKey(orgID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("imports: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrImportInProgress
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go l.renew(renewCtx, key, token, done)

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			stop()
			<-done
			_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		})
	}, nil
}

// renew extends the lease until ctx ends or the key no longer carries token.
func (l *TenantLock) renew(ctx context.Context, key, token string, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				return
			}
		}
	}
}
