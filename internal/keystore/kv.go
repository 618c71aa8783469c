/**
 * @description
 * This file implements the narrow external-KV contract the public-key
 * cache in keystore.go is built on, plus its production Redis-backed
 * implementation.
 *
 * Key features:
 * - Narrow KVStore Interface: put/get/del/del_tree over a family+key
 *   namespace, small enough that an in-memory fake can stand in for
 *   it in tests without a live Redis.
 * - Redis Backend: RedisKV reuses the same *redis.Client the teacher
 *   wires for order-book caching and pub/sub, using SCAN rather than
 *   the blocking KEYS command for hierarchical deletes.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client for Put/Get/Del/DelTree.
 */

package keystore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/poly-pro/shaken/internal/shakenerr"
)

// KVStore is the narrow external-KV contract spec.md §6 defines:
// put/get/del/del_tree over a family+key namespace. Values are text;
// Get returns "" on a miss rather than an error.
type KVStore interface {
	Put(ctx context.Context, family, key, value string) error
	Get(ctx context.Context, family, key string) (string, error)
	Del(ctx context.Context, family, key string) error
	DelTree(ctx context.Context, family, prefix string) error
}

// RedisKV is the production KVStore, backed by the same *redis.Client
// the teacher uses for order-book caching and pub/sub.
type RedisKV struct {
	client *redis.Client
}

/**
 * @description
 * NewRedisKV wraps an existing Redis client as a KVStore.
 *
 * @param client A connected Redis client, owned and closed by the caller.
 * @returns A *RedisKV ready for use by KeyStore.
 */
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func redisKey(family, key string) string {
	return family + ":" + key
}

func (r *RedisKV) Put(ctx context.Context, family, key, value string) error {
	if err := r.client.Set(ctx, redisKey(family, key), value, 0).Err(); err != nil {
		return shakenerr.StoreError(err, "redis SET %s", redisKey(family, key))
	}
	return nil
}

func (r *RedisKV) Get(ctx context.Context, family, key string) (string, error) {
	v, err := r.client.Get(ctx, redisKey(family, key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", shakenerr.StoreError(err, "redis GET %s", redisKey(family, key))
	}
	return v, nil
}

func (r *RedisKV) Del(ctx context.Context, family, key string) error {
	if err := r.client.Del(ctx, redisKey(family, key)).Err(); err != nil {
		return shakenerr.StoreError(err, "redis DEL %s", redisKey(family, key))
	}
	return nil
}

// DelTree removes every key under family:prefix* using a SCAN cursor,
// giving the "hierarchical delete" the KV contract requires without
// relying on Redis's KEYS command (which blocks the server).
func (r *RedisKV) DelTree(ctx context.Context, family, prefix string) error {
	pattern := redisKey(family, prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return shakenerr.StoreError(err, "redis SCAN %s", pattern)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return shakenerr.StoreError(err, "redis DEL (tree) %s", pattern)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
