package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlotLocker serializes the capacity-check-and-insert window for a single
// (day, block) slot. Without it two concurrent AssignSlot calls could both
// observe the block under capacity and overshoot it.
type SlotLocker interface {
	Acquire(ctx context.Context, day time.Time, blockID string) (release func(), err error)
}

func slotKey(day time.Time, blockID string) string {
	return day.Format("2006-01-02") + "|" + blockID
}

// localSlotLocker provides in-process slot mutexes, sufficient for a
// single-instance deployment.
type localSlotLocker struct {
	mu    sync.Mutex
	slots map[string]*slotEntry
}

type slotEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocalSlotLocker creates an in-process locker.
func NewLocalSlotLocker() SlotLocker {
	return &localSlotLocker{slots: make(map[string]*slotEntry)}
}

func (l *localSlotLocker) Acquire(ctx context.Context, day time.Time, blockID string) (func(), error) {
	key := slotKey(day, blockID)

	l.mu.Lock()
	entry, ok := l.slots[key]
	if !ok {
		entry = &slotEntry{}
		l.slots[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	release := func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.slots, key)
		}
		l.mu.Unlock()
	}
	return release, nil
}

// releaseScript deletes the lease only when still held by this owner.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// redisSlotLocker leases slots through Redis SET NX so multiple scheduler
// instances respect the same per-slot critical section.
type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a distributed locker with the given lease TTL.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) SlotLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &redisSlotLocker{client: client, ttl: ttl}
}

func (l *redisSlotLocker) Acquire(ctx context.Context, day time.Time, blockID string) (func(), error) {
	key := "slotlock:" + slotKey(day, blockID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.client.Eval(releaseCtx, releaseScript, []string{key}, token).Err()
	}
	return release, nil
}
