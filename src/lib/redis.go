package lib

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		return nil
	}
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// CacheAvailability stores a rendered per-day slot grid. Display reads may
// be stale; the accept/reject/queue decision never reads this cache.
func CacheAvailability(key string, payload string, ttl time.Duration) {
	rdb := GetRedisClient()
	if rdb == nil {
		return
	}
	if err := rdb.Set(context.Background(), key, payload, ttl).Err(); err != nil {
		log.Printf("[redis] Failed to cache availability for %s: %s\n", key, err.Error())
	}
}

func GetCachedAvailability(key string) (string, bool) {
	rdb := GetRedisClient()
	if rdb == nil {
		return "", false
	}
	val, err := rdb.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return "", false
	} else if err != nil {
		log.Printf("[redis] Error retrieving cached availability for %s: %s\n", key, err.Error())
		return "", false
	}
	return val, true
}

// InvalidateAvailability drops the cached grid for a court/date after a
// committed mutation touches it.
func InvalidateAvailability(key string) {
	rdb := GetRedisClient()
	if rdb == nil {
		return
	}
	if err := rdb.Del(context.Background(), key).Err(); err != nil {
		log.Printf("[redis] Failed to invalidate %s: %s\n", key, err.Error())
	}
}

// GetFlagOverride reads a runtime feature-flag override, e.g. flags:waitlist.
// Returns ok=false when no override is set or redis is unavailable.
func GetFlagOverride(name string) (bool, bool) {
	rdb := GetRedisClient()
	if rdb == nil {
		return false, false
	}
	val, err := rdb.Get(context.Background(), "flags:"+name).Result()
	if err == redis.Nil {
		return false, false
	} else if err != nil {
		log.Printf("[redis] Error reading flag %s: %s\n", name, err.Error())
		return false, false
	}
	return val == "on" || val == "true" || val == "1", true
}
