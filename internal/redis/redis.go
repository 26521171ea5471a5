// Package redis is an optional read-through cache for fetched comment
// lists. Cache misses and Redis outages degrade to a plain fetch; job
// state never lives here.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"commentwatch/internal/youtube"
)

type Service struct {
	client *redis.Client
	ttl    time.Duration
}

func New(redisURL string, ttl time.Duration) (*Service, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{client: client, ttl: ttl}, nil
}

func (s *Service) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *Service) Client() *redis.Client {
	return s.client
}

func commentsKey(videoID string) string {
	return fmt.Sprintf("comments:%s", videoID)
}

// GetComments returns the cached comment list for a video, if present.
// Any Redis or decode error counts as a miss.
func (s *Service) GetComments(ctx context.Context, videoID string) ([]youtube.Comment, bool) {
	raw, err := s.client.Get(ctx, commentsKey(videoID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("comment cache read failed", "video_id", videoID, "error", err)
		return nil, false
	}

	var comments []youtube.Comment
	if err := json.Unmarshal(raw, &comments); err != nil {
		slog.Warn("comment cache entry corrupt, ignoring", "video_id", videoID, "error", err)
		return nil, false
	}
	return comments, true
}

// StoreComments caches a fetched comment list with the configured TTL.
// Failures are logged and swallowed; the cache is best-effort.
func (s *Service) StoreComments(ctx context.Context, videoID string, comments []youtube.Comment) {
	raw, err := json.Marshal(comments)
	if err != nil {
		slog.Warn("failed to encode comments for cache", "video_id", videoID, "error", err)
		return
	}
	if err := s.client.Set(ctx, commentsKey(videoID), raw, s.ttl).Err(); err != nil {
		slog.Warn("comment cache write failed", "video_id", videoID, "error", err)
	}
}
