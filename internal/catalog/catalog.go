package catalog

import (
	"context"
	"errors"
	"strings"

	"moodtune/internal/cache"
	"moodtune/internal/database"
	"moodtune/internal/metrics"
	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	SearchLimit = 20
	RecentLimit = 12
	RandomSize  = 10
)

var (
	// ErrNoPlaylists is returned when no playlist matches a mood.
	ErrNoPlaylists = errors.New("No playlists found for this mood")
	// ErrEmptyQuery is returned when a search has no query text.
	ErrEmptyQuery = errors.New("Search query is required")
	// ErrUserNotFound is returned by Liked when the user does not exist.
	ErrUserNotFound = errors.New("User not found")
)

// Service answers read-only catalog queries.
type Service struct {
	store     database.Store
	playlists *cache.PlaylistCache
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// NewService returns a catalog backed by store. playlists and m may be nil.
func NewService(store database.Store, playlists *cache.PlaylistCache, m *metrics.Metrics, logger *logrus.Logger) *Service {
	return &Service{store: store, playlists: playlists, metrics: m, logger: logger}
}

// PlaylistsByMood returns every playlist whose mood contains mood
// (case-insensitive), with song references expanded in playlist order.
func (s *Service) PlaylistsByMood(ctx context.Context, mood string) ([]models.PopulatedPlaylist, error) {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return nil, ErrNoPlaylists
	}

	playlists, err := s.findPlaylists(ctx, mood)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		return nil, ErrNoPlaylists
	}

	// One lookup for every referenced song across all matched playlists.
	var ids []string
	seen := make(map[string]bool)
	for _, p := range playlists {
		for _, id := range p.Songs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	songs, err := s.store.GetSongsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	populated := make([]models.PopulatedPlaylist, 0, len(playlists))
	for _, p := range playlists {
		populated = append(populated, models.PopulatedPlaylist{
			Playlist: p,
			Songs:    models.OrderSongs(p.Songs, songs),
		})
	}
	return populated, nil
}

func (s *Service) findPlaylists(ctx context.Context, mood string) ([]models.Playlist, error) {
	if s.playlists != nil {
		cached, ok := s.playlists.GetPlaylists(ctx, mood)
		s.observeCache(ok)
		if ok {
			return cached, nil
		}
	}

	playlists, err := s.store.FindPlaylistsByMood(ctx, mood)
	if err != nil {
		return nil, err
	}

	if s.playlists != nil && len(playlists) > 0 {
		s.playlists.SetPlaylists(ctx, mood, playlists)
	}
	return playlists, nil
}

func (s *Service) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.CacheHit(hit)
	}
}

// Search matches q against song titles and artists.
func (s *Service) Search(ctx context.Context, q string) ([]models.Song, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	return s.store.SearchSongs(ctx, q, SearchLimit)
}

// Recent returns the newest songs.
func (s *Service) Recent(ctx context.Context) ([]models.Song, error) {
	return s.store.RecentSongs(ctx, RecentLimit)
}

// Random returns a random sample of songs.
func (s *Service) Random(ctx context.Context) ([]models.Song, error) {
	return s.store.RandomSongs(ctx, RandomSize)
}

// Liked returns the user's liked songs in liked order.
func (s *Service) Liked(ctx context.Context, userID string) ([]models.Song, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrInvalidID) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	songs, err := s.store.GetSongsByIDs(ctx, user.LikedSongs)
	if err != nil {
		return nil, err
	}
	return models.OrderSongs(user.LikedSongs, songs), nil
}
