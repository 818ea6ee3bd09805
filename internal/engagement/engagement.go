package engagement

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"moodtune/internal/database"
	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

// FavoritesLimit is how many songs Favorites returns at most.
const FavoritesLimit = 5

var (
	// ErrSongNotFound is returned when the target song does not exist.
	ErrSongNotFound = errors.New("Song not found")
	// ErrUserNotFound is returned when the acting user no longer exists.
	ErrUserNotFound = errors.New("User not found")
)

// Action describes what ToggleLike did.
type Action string

const (
	Liked   Action = "Song liked"
	Unliked Action = "Song unliked"
)

// LikeResult is the outcome of ToggleLike.
type LikeResult struct {
	Action       Action
	LikedSongs   []string
	NewLikeCount int64
}

// Tracker records likes and plays.
type Tracker struct {
	store  database.Store
	logger *logrus.Logger
}

// NewTracker returns a tracker backed by store.
func NewTracker(store database.Store, logger *logrus.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

// ToggleLike likes songID if the user has not liked it, and unlikes it
// otherwise. The user update and the counter update are separate writes; if
// the second fails the first is kept and the error is returned.
func (t *Tracker) ToggleLike(ctx context.Context, userID, songID string) (*LikeResult, error) {
	user, err := t.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}

	if user.HasLiked(songID) {
		return t.unlike(ctx, userID, songID)
	}
	return t.like(ctx, userID, songID)
}

func (t *Tracker) like(ctx context.Context, userID, songID string) (*LikeResult, error) {
	if _, err := t.store.GetSong(ctx, songID); err != nil {
		return nil, mapNotFound(err, ErrSongNotFound)
	}

	liked, err := t.store.AddLikedSong(ctx, userID, songID)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}

	count, err := t.store.AdjustSongLikes(ctx, songID, 1)
	if err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"song_id": songID,
		}).Error("Like recorded on user but song counter update failed")
		return nil, fmt.Errorf("failed to update like count: %w", err)
	}

	return &LikeResult{Action: Liked, LikedSongs: liked, NewLikeCount: count}, nil
}

func (t *Tracker) unlike(ctx context.Context, userID, songID string) (*LikeResult, error) {
	liked, err := t.store.RemoveLikedSong(ctx, userID, songID)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}

	count, err := t.store.AdjustSongLikes(ctx, songID, -1)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrInvalidID):
		// The song was deleted after it was liked; only the reference goes.
		count = 0
	default:
		t.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"song_id": songID,
		}).Error("Unlike recorded on user but song counter update failed")
		return nil, fmt.Errorf("failed to update like count: %w", err)
	}

	return &LikeResult{Action: Unliked, LikedSongs: liked, NewLikeCount: count}, nil
}

// LogPlay counts one play of songID globally and for the user.
func (t *Tracker) LogPlay(ctx context.Context, userID, songID string) error {
	if err := t.store.IncrementSongPlays(ctx, songID); err != nil {
		return mapNotFound(err, ErrSongNotFound)
	}
	if err := t.store.IncrementUserPlay(ctx, userID, songID); err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"song_id": songID,
		}).Error("Global play counted but user tally update failed")
		return mapNotFound(err, ErrUserNotFound)
	}
	return nil
}

// Favorites returns the user's most played songs, most played first.
func (t *Tracker) Favorites(ctx context.Context, userID string) ([]models.Song, error) {
	user, err := t.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}

	ranked := RankFavorites(user.SongPlays, FavoritesLimit)
	if len(ranked) == 0 {
		return []models.Song{}, nil
	}

	songs, err := t.store.GetSongsByIDs(ctx, ranked)
	if err != nil {
		return nil, err
	}
	return models.OrderSongs(ranked, songs), nil
}

// RankFavorites returns up to n song ids ordered by play count descending.
// Ties are broken by id ascending so the result is deterministic.
func RankFavorites(plays map[string]int64, n int) []string {
	if n <= 0 || len(plays) == 0 {
		return []string{}
	}

	ids := make([]string, 0, len(plays))
	for id := range plays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if plays[ids[i]] != plays[ids[j]] {
			return plays[ids[i]] > plays[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func mapNotFound(err, target error) error {
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrInvalidID) {
		return target
	}
	return err
}
