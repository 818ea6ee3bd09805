package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

// Cache is a byte-oriented TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Options selects and configures a cache backend.
type Options struct {
	Driver        string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New builds the cache selected by opts.Driver.
func New(ctx context.Context, opts Options, logger *logrus.Logger) (Cache, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryCache(opts.TTL), nil
	case "redis":
		return NewRedisCache(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.TTL, logger)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}

const playlistPrefix = "playlists:mood:"

// PlaylistCache caches playlist documents per mood query. Only song ids are
// stored; song records are always read fresh so counters stay current.
type PlaylistCache struct {
	cache  Cache
	logger *logrus.Logger
}

// NewPlaylistCache wraps c.
func NewPlaylistCache(c Cache, logger *logrus.Logger) *PlaylistCache {
	return &PlaylistCache{cache: c, logger: logger}
}

func playlistKey(mood string) string {
	return playlistPrefix + strings.ToLower(mood)
}

// GetPlaylists returns the cached playlists for mood. Backend errors are
// logged and treated as a miss.
func (pc *PlaylistCache) GetPlaylists(ctx context.Context, mood string) ([]models.Playlist, bool) {
	data, ok, err := pc.cache.Get(ctx, playlistKey(mood))
	if err != nil {
		pc.logger.WithError(err).WithField("mood", mood).Warn("Playlist cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var playlists []models.Playlist
	if err := json.Unmarshal(data, &playlists); err != nil {
		pc.logger.WithError(err).WithField("mood", mood).Warn("Discarding corrupt playlist cache entry")
		return nil, false
	}
	return playlists, true
}

// SetPlaylists caches playlists for mood.
func (pc *PlaylistCache) SetPlaylists(ctx context.Context, mood string, playlists []models.Playlist) {
	data, err := json.Marshal(playlists)
	if err != nil {
		pc.logger.WithError(err).Warn("Failed to encode playlists for cache")
		return
	}
	if err := pc.cache.Set(ctx, playlistKey(mood), data); err != nil {
		pc.logger.WithError(err).WithField("mood", mood).Warn("Playlist cache write failed")
	}
}

// Invalidate drops every cached mood lookup.
func (pc *PlaylistCache) Invalidate(ctx context.Context) {
	if err := pc.cache.DeletePrefix(ctx, playlistPrefix); err != nil {
		pc.logger.WithError(err).Warn("Playlist cache invalidation failed")
	}
}
