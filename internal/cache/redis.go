package cache

import (
	"context"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Client is nil when the cache is disabled or unreachable.
var Client *redis.Client

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// InitRedis connects to addr, which may be host:port or a redis:// URL. An
// empty addr leaves the cache disabled. A server that does not answer PING
// is logged and the cache stays disabled so lookups go straight to the
// provider.
func InitRedis(ctx context.Context, addr string) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		log.Println("Redis cache disabled")
		Client = nil
		return
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			log.Fatalf("failed to parse REDIS_URL: %v", err)
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	if err := pingRedis(ctx, client); err != nil {
		log.Printf("Warning: failed to connect to Redis at %s, cache disabled: %v", opts.Addr, err)
		_ = client.Close()
		Client = nil
		return
	}
	Client = client
	log.Println("Connected to Redis")
}

// Close releases the client if one was opened.
func Close() {
	if Client == nil {
		return
	}
	if err := Client.Close(); err != nil {
		log.Printf("error closing redis client: %v", err)
	}
	Client = nil
}
