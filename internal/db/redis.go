// internal/db/redis.go
package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Widget render hashes older than this are discarded; a stale hash only
// costs one redundant edit call.
const widgetHashTTL = 7 * 24 * time.Hour

type RedisDB struct {
	Client *redis.Client
}

func NewRedisDB(redisURL string) (*RedisDB, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("[Redis] ✅ Connected to Redis")
	return &RedisDB{Client: client}, nil
}

func (r *RedisDB) Close() {
	if r.Client != nil {
		r.Client.Close()
		log.Println("[Redis] Connection closed")
	}
}

// RenderHash fingerprints a rendered widget payload.
func RenderHash(payload interface{}) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WidgetUnchanged reports whether the stored render hash for a status
// message matches the given one. A nil receiver or any redis error reads
// as "changed" so the edit still happens.
func (r *RedisDB) WidgetUnchanged(ctx context.Context, messageID, hash string) bool {
	if r == nil || hash == "" {
		return false
	}
	stored, err := r.Client.Get(ctx, "widget:"+messageID).Result()
	if err != nil {
		return false
	}
	return stored == hash
}

// RememberWidget stores the render hash of the last successful edit.
func (r *RedisDB) RememberWidget(ctx context.Context, messageID, hash string) {
	if r == nil || hash == "" {
		return
	}
	if err := r.Client.Set(ctx, "widget:"+messageID, hash, widgetHashTTL).Err(); err != nil {
		log.Printf("[Redis] Failed to store widget hash for %s: %v", messageID, err)
	}
}

// ForgetWidget drops the stored hash, e.g. after the widget was deleted.
func (r *RedisDB) ForgetWidget(ctx context.Context, messageID string) {
	if r == nil {
		return
	}
	if err := r.Client.Del(ctx, "widget:"+messageID).Err(); err != nil {
		log.Printf("[Redis] Failed to drop widget hash for %s: %v", messageID, err)
	}
}
