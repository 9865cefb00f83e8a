package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores embeddings keyed by content so identical text is only
// embedded once.
type Cache interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Put(ctx context.Context, text string, vec []float32)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + hex.EncodeToString(sum[:])
}

// MemoryCache is a bounded in-process cache used when Redis is not
// configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	max     int
}

// NewMemoryCache creates a cache holding at most max entries.
func NewMemoryCache(max int) *MemoryCache {
	if max <= 0 {
		max = 4096
	}
	return &MemoryCache{entries: make(map[string][]float32), max: max}
}

func (c *MemoryCache) Get(_ context.Context, text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.entries[cacheKey(text)]
	return vec, ok
}

func (c *MemoryCache) Put(_ context.Context, text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		// Drop the map rather than track recency; embeddings are cheap to
		// recompute relative to the bookkeeping.
		c.entries = make(map[string][]float32)
	}
	c.entries[cacheKey(text)] = vec
}

// RedisCache stores embeddings in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the given Redis URL.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, cacheKey(text)).Bytes()
	if err != nil || len(raw)%4 != 0 {
		return nil, false
	}
	return decodeVector(raw), true
}

func (c *RedisCache) Put(ctx context.Context, text string, vec []float32) {
	c.client.Set(ctx, cacheKey(text), encodeVector(vec), c.ttl)
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) []float32 {
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec
}
