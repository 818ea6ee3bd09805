package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a document with the requested id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID is returned when an id is malformed for the backend.
	ErrInvalidID = errors.New("invalid id")
	// ErrDuplicateEmail is returned when a user with the same email exists.
	ErrDuplicateEmail = errors.New("user with this email already exists")
)

// Store is the persistence layer for users, songs and playlists. Every
// method is a single-document atomic operation unless noted otherwise;
// nothing spans documents transactionally.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserOTP(ctx context.Context, id, otp string, expires time.Time) error
	MarkUserVerified(ctx context.Context, id string) error
	// LinkGoogleID attaches a Google identity and marks the account verified.
	// dropPassword also clears the password hash.
	LinkGoogleID(ctx context.Context, id, googleID string, dropPassword bool) error
	SetUserRole(ctx context.Context, id, role string) error
	// AddLikedSong appends songID to the liked set and returns the updated set.
	AddLikedSong(ctx context.Context, userID, songID string) ([]string, error)
	// RemoveLikedSong pulls songID from the liked set and returns the updated set.
	RemoveLikedSong(ctx context.Context, userID, songID string) ([]string, error)
	// IncrementUserPlay bumps the user's tally for songID, creating it if absent.
	IncrementUserPlay(ctx context.Context, userID, songID string) error

	CreateSong(ctx context.Context, song *models.Song) error
	GetSong(ctx context.Context, id string) (*models.Song, error)
	// GetSongsByIDs returns the songs that exist for ids, in no particular order.
	GetSongsByIDs(ctx context.Context, ids []string) ([]models.Song, error)
	ListSongs(ctx context.Context, order models.SongOrder) ([]models.Song, error)
	SearchSongs(ctx context.Context, query string, limit int) ([]models.Song, error)
	RecentSongs(ctx context.Context, limit int) ([]models.Song, error)
	RandomSongs(ctx context.Context, size int) ([]models.Song, error)
	// AdjustSongLikes adds delta to the like counter, never going below zero,
	// and returns the new value.
	AdjustSongLikes(ctx context.Context, id string, delta int64) (int64, error)
	IncrementSongPlays(ctx context.Context, id string) error
	DeleteSong(ctx context.Context, id string) error
	// BackfillSongCounters zeroes missing counters and reports how many songs changed.
	BackfillSongCounters(ctx context.Context) (int64, error)

	CreatePlaylist(ctx context.Context, playlist *models.Playlist) error
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)
	// FindPlaylistsByMood matches mood case-insensitively as a substring.
	FindPlaylistsByMood(ctx context.Context, mood string) ([]models.Playlist, error)
	// PullSongFromPlaylists removes songID from every playlist and reports
	// how many playlists changed.
	PullSongFromPlaylists(ctx context.Context, songID string) (int64, error)
	DeletePlaylist(ctx context.Context, id string) error
}

// Open builds the store selected by driver.
func Open(ctx context.Context, driver string, opts Options, logger *logrus.Logger) (Store, error) {
	switch driver {
	case "mongo":
		return NewMongoStore(ctx, opts.URI, opts.Name, opts.MaxConnections, logger)
	case "sqlite":
		return NewSQLiteStore(opts.Path, opts.MaxConnections, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// Options carries backend connection settings.
type Options struct {
	URI            string
	Name           string
	Path           string
	MaxConnections int
}
