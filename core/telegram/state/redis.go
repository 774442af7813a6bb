package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/m3rciful/satsbot/core/logger"
)

// KV is the subset of redis used by the redis store and locker.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	// DelIfEquals deletes key only while it still holds value.
	DelIfEquals(ctx context.Context, key, value string) error
	// ExtendIfEquals resets the TTL of key only while it still holds value
	// and reports whether it did.
	ExtendIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

var _ KV = (*redisKV)(nil)

type redisKV struct {
	cli *redis.Client
}

// NewRedisKV adapts a go-redis client to KV.
func NewRedisKV(cli *redis.Client) KV {
	return &redisKV{cli: cli}
}

func (r *redisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.cli.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.cli.Set(ctx, key, value, ttl).Err()
}

func (r *redisKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.cli.SetNX(ctx, key, value, ttl).Result()
}

func (r *redisKV) Del(ctx context.Context, key string) error {
	return r.cli.Del(ctx, key).Err()
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (r *redisKV) DelIfEquals(ctx context.Context, key, value string) error {
	return luaUnlock.Run(ctx, r.cli, []string{key}, value).Err()
}

var luaExtend = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

func (r *redisKV) ExtendIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := luaExtend.Run(ctx, r.cli, []string{key}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type redisStore struct {
	kv  KV
	ttl time.Duration
}

// NewRedisStore stores sessions as JSON under conv_state:<user_id>, expiring after ttl.
func NewRedisStore(kv KV, ttl time.Duration) Store {
	return &redisStore{kv: kv, ttl: ttl}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("conv_state:%d", userID)
}

func (s *redisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.kv.Get(ctx, sessionKey(userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Data == nil {
		session.Data = make(map[string]string)
	}
	return &session, nil
}

func (s *redisStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKey(sess.UserID), string(data), s.ttl); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.kv.Del(ctx, sessionKey(userID)); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

type redisLocker struct {
	kv    KV
	ttl   time.Duration
	retry time.Duration
}

// NewRedisLocker returns a Locker shared by every process using the same redis.
// ttl bounds how long a crashed holder can keep the lock; a live holder
// refreshes it every ttl/3 until it unlocks.
func NewRedisLocker(kv KV, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{kv: kv, ttl: ttl, retry: 50 * time.Millisecond}
}

func lockKey(userID int64) string {
	return fmt.Sprintf("lock:conv:%d", userID)
}

func (l *redisLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	key := lockKey(userID)
	token := uuid.NewString()
	for {
		ok, err := l.kv.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: user %d: %v", ErrLockTimeout, userID, ctx.Err())
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, userID, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.unlock(key, token, userID)
		})
	}, nil
}

func (l *redisLocker) keepAlive(key, token string, userID int64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := l.ttl / 3
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		ok, err := l.kv.ExtendIfEquals(ctx, key, token, l.ttl)
		cancel()
		switch {
		case err != nil:
			logger.Warn(ctx, "store", "lock.extend",
				slog.String("status", "fail"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		case !ok:
			logger.Warn(ctx, "store", "lock.lost",
				slog.String("status", "fail"),
				slog.Int64("user_id", userID),
			)
			return
		}
	}
}

func (l *redisLocker) unlock(key, token string, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.kv.DelIfEquals(ctx, key, token); err != nil {
		logger.Warn(ctx, "store", "lock.release",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}
