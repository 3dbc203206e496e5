package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
)

const (
	redisKeyPrefix = "wellness:session:"
	redisIndexKey  = "wellness:sessions"
)

// Make sure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// RedisStore keeps sessions in Redis so several service instances can share
// them. Sessions expire after TTL in case a call is never terminated.
type RedisStore struct {
	pool *redis.Pool
	ttl  time.Duration
}

// NewRedisPool creates a connection pool for addr.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(5*time.Second),
				redis.DialWriteTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewRedisStore creates a store on top of pool.
func NewRedisStore(pool *redis.Pool, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{pool: pool, ttl: ttl}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (r *RedisStore) Close() error {
	return r.pool.Close()
}

func (r *RedisStore) Get(ctx context.Context, callSid string) (*CallSession, bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", sessionKey(callSid)))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", callSid, err)
	}

	sess, err := decodeSession(data)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (r *RedisStore) Save(ctx context.Context, sess *CallSession) error {
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	conn.Send("MULTI")
	conn.Send("SET", sessionKey(sess.CallSid), data, "EX", int64(r.ttl/time.Second))
	conn.Send("SADD", redisIndexKey, sess.CallSid)
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("redis save %s: %w", sess.CallSid, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, callSid string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	conn.Send("MULTI")
	conn.Send("DEL", sessionKey(callSid))
	conn.Send("SREM", redisIndexKey, callSid)
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("redis delete %s: %w", callSid, err)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]*CallSession, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	sids, err := redis.Strings(conn.Do("SMEMBERS", redisIndexKey))
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	if len(sids) == 0 {
		return []*CallSession{}, nil
	}

	args := make([]interface{}, len(sids))
	for i, sid := range sids {
		args[i] = sessionKey(sid)
	}
	values, err := redis.ByteSlices(conn.Do("MGET", args...))
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	out := make([]*CallSession, 0, len(values))
	for i, data := range values {
		if data == nil {
			// expired; drop it from the index
			conn.Do("SREM", redisIndexKey, sids[i])
			continue
		}
		sess, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallSid < out[j].CallSid })
	return out, nil
}

func (r *RedisStore) Count(ctx context.Context) (int, error) {
	sessions, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

func sessionKey(callSid string) string {
	return redisKeyPrefix + callSid
}

func encodeSession(sess *CallSession) ([]byte, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", sess.CallSid, err)
	}
	return data, nil
}

func decodeSession(data []byte) (*CallSession, error) {
	var sess CallSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Transcript == nil {
		sess.Transcript = make([]Message, 0)
	}
	return &sess, nil
}
