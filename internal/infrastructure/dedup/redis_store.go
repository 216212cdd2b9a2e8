// Package dedup keeps the append-only log of processed source URLs in Redis.
//
// Availability is preferred over correctness: when Redis cannot be reached at
// start-up the store runs disabled, HasSeen answers false for every URL and
// Record does nothing. A run against a disabled store will therefore
// reprocess URLs it has already published. Errors on individual calls degrade
// the same way and are only logged.
package dedup

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"DigestHarvester/internal/domain"
	"DigestHarvester/internal/logging"
	"DigestHarvester/internal/ports"
)

const pingTimeout = 5 * time.Second

// RedisStore implements ports.DedupStore with one Redis list per URL.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.DedupStore = (*RedisStore)(nil)

// Open connects to redisURL. It never fails: an unparsable URL or a failed
// ping yields a disabled store.
func Open(ctx context.Context, redisURL, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = logging.Discard()
	}
	store := &RedisStore{prefix: prefix, now: time.Now, logger: logger}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("dedup store misconfigured, duplicate checking will be disabled", "error", err)
		return store
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("dedup store unreachable, duplicate checking will be disabled", "error", err)
		_ = client.Close()
		return store
	}

	logger.Info("dedup store connected", "addr", opts.Addr)
	store.client = client
	return store
}

// NewRedisStore wraps an existing client; a nil client gives a disabled store.
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now, logger: logger}
}

// Available reports whether dedup filtering is active.
func (s *RedisStore) Available() bool {
	return s != nil && s.client != nil
}

// HasSeen answers whether any entry exists for url, whatever its status.
func (s *RedisStore) HasSeen(ctx context.Context, url string) bool {
	if !s.Available() {
		return false
	}

	n, err := s.client.Exists(ctx, s.key(url)).Result()
	if err != nil {
		s.logger.Error("dedup lookup failed, treating url as unseen", "url", url, "error", err)
		return false
	}

	s.logger.Debug("dedup lookup", "url", url, "seen", n > 0)
	return n > 0
}

// Record appends an entry for url. Failures are logged and swallowed.
func (s *RedisStore) Record(ctx context.Context, url string, status domain.DedupStatus) {
	if !s.Available() {
		return
	}

	entry := domain.DedupEntry{URL: url, Status: status, Timestamp: s.now().UTC()}
	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("encode dedup entry", "url", url, "error", err)
		return
	}

	if err := s.client.RPush(ctx, s.key(url), payload).Err(); err != nil {
		s.logger.Error("record dedup entry", "url", url, "status", status, "error", err)
		return
	}
	s.logger.Info("logged url", "url", url, "status", status)
}

// entries returns the log for url in insertion order.
func (s *RedisStore) entries(ctx context.Context, url string) ([]domain.DedupEntry, error) {
	if !s.Available() {
		return nil, nil
	}

	raw, err := s.client.LRange(ctx, s.key(url), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.DedupEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.DedupEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) key(url string) string {
	return s.prefix + url
}
