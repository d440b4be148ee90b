package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUserNotFound is returned when updating a user absent from the mirror.
var ErrUserNotFound = errors.New("user not found")

// RedisPresenceRepo keeps room presence in Redis. Every key carries a
// TTL so records from a crashed server expire on their own.
type RedisPresenceRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPresenceRepo wraps an existing Redis client.
func NewRedisPresenceRepo(rdb *redis.Client, ttl time.Duration) *RedisPresenceRepo {
	return &RedisPresenceRepo{rdb: rdb, ttl: ttl}
}

func usersKey(room string) string {
	return fmt.Sprintf("rooms:%s:users", room)
}

func userKey(room, userID string) string {
	return fmt.Sprintf("users:%s:%s", room, userID)
}

func (r *RedisPresenceRepo) AddUser(ctx context.Context, room string, user User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, userKey(room, user.ID), b, r.ttl)
	pipe.SAdd(ctx, usersKey(room), user.ID)
	pipe.Expire(ctx, usersKey(room), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisPresenceRepo) RemoveUser(ctx context.Context, room, userID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.SRem(ctx, usersKey(room), userID)
	pipe.Del(ctx, userKey(room, userID))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPresenceRepo) UpdateUserState(ctx context.Context, room, userID string, speaking bool, energy float64) error {
	key := userKey(room, userID)
	val, err := r.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	var u User
	if err := json.Unmarshal(val, &u); err != nil {
		return err
	}
	u.IsSpeaking = speaking
	u.Energy = energy
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key, b, r.ttl).Err()
}

func (r *RedisPresenceRepo) ListUsers(ctx context.Context, room string) ([]User, error) {
	ids, err := r.rdb.SMembers(ctx, usersKey(room)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []User{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(room, id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	res := make([]User, 0, len(ids))
	for _, val := range vals {
		if val == nil {
			continue
		}
		b, ok := val.(string)
		if !ok {
			continue
		}
		var u User
		if json.Unmarshal([]byte(b), &u) == nil {
			res = append(res, u)
		}
	}
	return res, nil
}
