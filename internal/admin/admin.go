package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"moodtune/internal/cache"
	"moodtune/internal/database"
	"moodtune/internal/metadata"
	"moodtune/internal/metrics"
	"moodtune/internal/storage"
	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrMissingAssets    = errors.New("Please upload both a song file and a cover photo.")
	ErrSongNotFound     = errors.New("Song not found")
	ErrPlaylistNotFound = errors.New("Playlist not found")
)

// InputError reports a rejected admin request. Msg is client-facing.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// SongInput carries the descriptive fields of a new song.
type SongInput struct {
	Title    string
	Artist   string
	Mood     string
	Language string
	// Origin, when set, is prefixed to root-relative asset URLs
	// (e.g. "http://localhost:5000").
	Origin string
}

// Upload is one uploaded file.
type Upload struct {
	Name    string
	Content io.ReadSeeker
	Size    int64
}

// PlaylistInput carries the fields of a new playlist.
type PlaylistInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Mood          string   `json:"mood"`
	Songs         []string `json:"songs"`
	CoverPhotoURL string   `json:"coverPhotoUrl"`
}

// Service implements catalog administration.
type Service struct {
	store     database.Store
	media     storage.MediaStore
	extractor *metadata.Extractor
	playlists *cache.PlaylistCache
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// NewService wires an admin service. playlists and m may be nil.
func NewService(store database.Store, media storage.MediaStore, extractor *metadata.Extractor,
	playlists *cache.PlaylistCache, m *metrics.Metrics, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		media:     media,
		extractor: extractor,
		playlists: playlists,
		metrics:   m,
		logger:    logger,
	}
}

// IngestSong validates and stores both assets, then inserts the song. If
// the insert fails the stored assets are removed again.
func (s *Service) IngestSong(ctx context.Context, in SongInput, song, cover *Upload) (*models.Song, error) {
	if song == nil || cover == nil || song.Content == nil || cover.Content == nil {
		return nil, ErrMissingAssets
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Artist = strings.TrimSpace(in.Artist)
	in.Language = strings.TrimSpace(in.Language)
	if in.Title == "" || in.Artist == "" || in.Language == "" || strings.TrimSpace(in.Mood) == "" {
		return nil, invalid("Please provide title, artist, mood and language.")
	}
	mood, ok := models.ParseMood(in.Mood)
	if !ok {
		return nil, invalid("Invalid mood. Must be one of: %s", moodList())
	}
	if !s.extractor.IsAudioFile(song.Name) {
		return nil, invalid("Invalid song file type. Supported formats: %s",
			strings.Join(s.extractor.SupportedFormats(), ", "))
	}
	if !s.extractor.IsImageFile(cover.Name) {
		return nil, invalid("Invalid cover photo type. Supported formats: .jpg, .jpeg, .png, .gif, .webp")
	}

	info, err := s.extractor.Extract(song.Content, song.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read song file: %w", err)
	}

	record := &models.Song{
		Title:    in.Title,
		Artist:   in.Artist,
		Mood:     mood.String(),
		Language: in.Language,
		Duration: info.Duration,
	}
	if err := s.storeAndInsert(ctx, record, song, cover, in.Origin); err != nil {
		return nil, err
	}

	s.countIngest("upload")
	s.logger.WithFields(logrus.Fields{
		"song_id": record.ID,
		"title":   record.Title,
		"artist":  record.Artist,
		"mood":    record.Mood,
	}).Info("Song uploaded")
	return record, nil
}

// storeAndInsert saves both assets and inserts record, rolling the assets
// back when any later step fails.
func (s *Service) storeAndInsert(ctx context.Context, record *models.Song, song, cover *Upload, origin string) error {
	songObj, err := s.media.Save(ctx, storage.KindSong, song.Name, song.Content, song.Size, metadata.ContentType(song.Name))
	if err != nil {
		return fmt.Errorf("failed to store song file: %w", err)
	}

	coverObj, err := s.media.Save(ctx, storage.KindCover, cover.Name, cover.Content, cover.Size, metadata.ContentType(cover.Name))
	if err != nil {
		s.removeAssets(ctx, songObj)
		return fmt.Errorf("failed to store cover photo: %w", err)
	}

	record.SongURL = absoluteURL(origin, songObj.URL)
	record.CoverPhotoURL = absoluteURL(origin, coverObj.URL)

	if err := s.store.CreateSong(ctx, record); err != nil {
		s.removeAssets(ctx, songObj, coverObj)
		return fmt.Errorf("failed to save song: %w", err)
	}
	return nil
}

func (s *Service) removeAssets(ctx context.Context, objects ...storage.Object) {
	for _, obj := range objects {
		if err := s.media.Delete(ctx, obj.Key); err != nil {
			s.logger.WithError(err).WithField("key", obj.Key).Warn("Failed to remove orphaned asset")
		}
	}
}

func absoluteURL(origin, url string) string {
	if origin == "" || !strings.HasPrefix(url, "/") {
		return url
	}
	return strings.TrimSuffix(origin, "/") + url
}

func moodList() string {
	names := make([]string, len(models.Moods))
	for i, m := range models.Moods {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}

// DeleteSong removes id from every playlist and then deletes the song.
// Asset files and liked references are left in place.
func (s *Service) DeleteSong(ctx context.Context, id string) error {
	if _, err := s.store.GetSong(ctx, id); err != nil {
		return notFound(err, ErrSongNotFound)
	}

	pulled, err := s.store.PullSongFromPlaylists(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSong(ctx, id); err != nil {
		return notFound(err, ErrSongNotFound)
	}
	s.invalidate(ctx)

	s.logger.WithFields(logrus.Fields{
		"song_id":           id,
		"playlists_changed": pulled,
	}).Info("Song deleted")
	return nil
}

// CreatePlaylist validates and inserts a new admin playlist.
func (s *Service) CreatePlaylist(ctx context.Context, in PlaylistInput) (*models.Playlist, error) {
	in.Name = strings.TrimSpace(in.Name)
	songs := make([]string, 0, len(in.Songs))
	for _, id := range in.Songs {
		if id = strings.TrimSpace(id); id != "" {
			songs = append(songs, id)
		}
	}
	if in.Name == "" || strings.TrimSpace(in.Mood) == "" || len(songs) == 0 {
		return nil, invalid("Please provide a name, mood, and select at least one song.")
	}
	mood, ok := models.ParseMood(in.Mood)
	if !ok {
		return nil, invalid("Invalid mood. Must be one of: %s", moodList())
	}

	playlist := &models.Playlist{
		Name:          in.Name,
		Description:   strings.TrimSpace(in.Description),
		Songs:         songs,
		CoverPhotoURL: strings.TrimSpace(in.CoverPhotoURL),
		CreatedBy:     "admin",
		Mood:          mood,
	}
	if err := s.store.CreatePlaylist(ctx, playlist); err != nil {
		if errors.Is(err, database.ErrInvalidID) {
			return nil, invalid("Invalid song id in playlist.")
		}
		return nil, err
	}
	s.invalidate(ctx)

	s.logger.WithFields(logrus.Fields{
		"playlist_id": playlist.ID,
		"name":        playlist.Name,
		"mood":        playlist.Mood,
		"songs":       len(playlist.Songs),
	}).Info("Playlist created")
	return playlist, nil
}

// DeletePlaylist deletes the playlist with id.
func (s *Service) DeletePlaylist(ctx context.Context, id string) error {
	if err := s.store.DeletePlaylist(ctx, id); err != nil {
		return notFound(err, ErrPlaylistNotFound)
	}
	s.invalidate(ctx)
	s.logger.WithField("playlist_id", id).Info("Playlist deleted")
	return nil
}

// ListSongs returns every song, newest first.
func (s *Service) ListSongs(ctx context.Context) ([]models.Song, error) {
	return s.store.ListSongs(ctx, models.OrderNewest)
}

// SongAnalytics returns every song, most played first.
func (s *Service) SongAnalytics(ctx context.Context) ([]models.Song, error) {
	return s.store.ListSongs(ctx, models.OrderMostPlayed)
}

// ListPlaylists returns every playlist, newest first.
func (s *Service) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return s.store.ListPlaylists(ctx)
}

// ListUsers returns every account, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// BackfillCounters zeroes missing play and like counters.
func (s *Service) BackfillCounters(ctx context.Context) (int64, error) {
	changed, err := s.store.BackfillSongCounters(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.WithField("songs_updated", changed).Info("Counter backfill complete")
	return changed, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.playlists != nil {
		s.playlists.Invalidate(ctx)
	}
}

func (s *Service) countIngest(source string) {
	if s.metrics != nil {
		s.metrics.SongsIngested.WithLabelValues(source).Inc()
	}
}

func notFound(err, target error) error {
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrInvalidID) {
		return target
	}
	return err
}
