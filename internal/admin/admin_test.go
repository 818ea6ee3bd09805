package admin

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moodtune/internal/cache"
	"moodtune/internal/database"
	"moodtune/internal/metadata"
	"moodtune/internal/metrics"
	"moodtune/internal/storage"
	"moodtune/pkg/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

type fixture struct {
	svc     *Service
	store   *database.SQLiteStore
	media   *storage.LocalStore
	cache   *cache.PlaylistCache
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "admin.db"), 1, logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	media, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), logger)
	if err != nil {
		t.Fatalf("Failed to create media store: %v", err)
	}

	mem := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { mem.Close() })
	pc := cache.NewPlaylistCache(mem, logger)

	extractor := metadata.NewExtractor([]string{".mp3", ".flac", ".wav", ".m4a"}, logger)
	m := metrics.New()
	return &fixture{
		svc:     NewService(store, media, extractor, pc, m, logger),
		store:   store,
		media:   media,
		cache:   pc,
		metrics: m,
	}
}

// wavBytes builds a PCM WAV holding the given number of seconds of silence.
func wavBytes(seconds int) []byte {
	const sampleRate, channels, bits = 8000, 1, 16
	dataSize := uint32(seconds * sampleRate * channels * bits / 8)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36)+dataSize)
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bits/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func upload(name string, data []byte) *Upload {
	return &Upload{Name: name, Content: bytes.NewReader(data), Size: int64(len(data))}
}

func validInput() SongInput {
	return SongInput{Title: "Sunrise", Artist: "Band", Mood: "Happy", Language: "en"}
}

func TestIngestSong(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Origin = "http://localhost:5000/"
	song, err := f.svc.IngestSong(ctx, in, upload("sunrise.wav", wavBytes(3)), upload("cover.png", pngBytes))
	if err != nil {
		t.Fatalf("IngestSong failed: %v", err)
	}

	if song.ID == "" {
		t.Error("Expected song id to be assigned")
	}
	if song.Mood != "happy" {
		t.Errorf("Expected mood normalized to happy, got %q", song.Mood)
	}
	if song.Duration != 3 {
		t.Errorf("Expected duration 3, got %d", song.Duration)
	}
	for _, url := range []string{song.SongURL, song.CoverPhotoURL} {
		if !strings.HasPrefix(url, "http://localhost:5000"+storage.URLPrefix) {
			t.Errorf("Expected absolute upload URL, got %q", url)
		}
		key := strings.TrimPrefix(url, "http://localhost:5000"+storage.URLPrefix)
		if _, err := os.Stat(filepath.Join(f.media.Root(), filepath.FromSlash(key))); err != nil {
			t.Errorf("Expected stored file for %s: %v", url, err)
		}
	}

	stored, err := f.store.GetSong(ctx, song.ID)
	if err != nil {
		t.Fatalf("GetSong failed: %v", err)
	}
	if stored.PlayCount != 0 || stored.LikeCount != 0 {
		t.Errorf("Expected zero counters, got plays=%d likes=%d", stored.PlayCount, stored.LikeCount)
	}

	if got := testutil.ToFloat64(f.metrics.SongsIngested.WithLabelValues("upload")); got != 1 {
		t.Errorf("Expected 1 upload ingest, got %v", got)
	}
}

func TestIngestSongValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("missing assets", func(t *testing.T) {
		_, err := f.svc.IngestSong(ctx, validInput(), upload("a.wav", wavBytes(1)), nil)
		if !errors.Is(err, ErrMissingAssets) {
			t.Errorf("Expected ErrMissingAssets, got %v", err)
		}
		_, err = f.svc.IngestSong(ctx, validInput(), nil, upload("c.png", pngBytes))
		if !errors.Is(err, ErrMissingAssets) {
			t.Errorf("Expected ErrMissingAssets, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*SongInput)
		song   string
		cover  string
		want   string
	}{
		{"missing title", func(in *SongInput) { in.Title = " " }, "a.wav", "c.png", "Please provide"},
		{"unknown mood", func(in *SongInput) { in.Mood = "furious" }, "a.wav", "c.png", "Invalid mood"},
		{"bad audio type", func(in *SongInput) {}, "a.txt", "c.png", "Invalid song file type"},
		{"bad cover type", func(in *SongInput) {}, "a.wav", "c.bmp", "Invalid cover photo type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := f.svc.IngestSong(ctx, in, upload(tt.song, wavBytes(1)), upload(tt.cover, pngBytes))

			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("Expected InputError, got %v", err)
			}
			if !strings.Contains(inputErr.Msg, tt.want) {
				t.Errorf("Expected message containing %q, got %q", tt.want, inputErr.Msg)
			}
		})
	}

	songs, err := f.svc.ListSongs(ctx)
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	if len(songs) != 0 {
		t.Errorf("Expected no songs after rejected uploads, got %d", len(songs))
	}
}

func TestDeleteSongPrunesPlaylists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.IngestSong(ctx, validInput(), upload("a.wav", wavBytes(1)), upload("a.png", pngBytes))
	if err != nil {
		t.Fatalf("IngestSong failed: %v", err)
	}
	b, err := f.svc.IngestSong(ctx, validInput(), upload("b.wav", wavBytes(1)), upload("b.png", pngBytes))
	if err != nil {
		t.Fatalf("IngestSong failed: %v", err)
	}

	playlist, err := f.svc.CreatePlaylist(ctx, PlaylistInput{
		Name:  "Morning",
		Mood:  "happy",
		Songs: []string{a.ID, b.ID},
	})
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}

	f.cache.SetPlaylists(ctx, "happy", []models.Playlist{*playlist})

	if err := f.svc.DeleteSong(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSong failed: %v", err)
	}

	got, err := f.store.GetPlaylist(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if len(got.Songs) != 1 || got.Songs[0] != b.ID {
		t.Errorf("Expected playlist to hold only %s, got %v", b.ID, got.Songs)
	}
	if _, ok := f.cache.GetPlaylists(ctx, "happy"); ok {
		t.Error("Expected playlist cache to be invalidated")
	}

	if err := f.svc.DeleteSong(ctx, a.ID); !errors.Is(err, ErrSongNotFound) {
		t.Errorf("Expected ErrSongNotFound on second delete, got %v", err)
	}
}

func TestCreatePlaylistValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   PlaylistInput
		want string
	}{
		{"no name", PlaylistInput{Mood: "sad", Songs: []string{"x"}}, "Please provide a name, mood, and select at least one song."},
		{"no songs", PlaylistInput{Name: "Rain", Mood: "sad", Songs: []string{" "}}, "Please provide a name, mood, and select at least one song."},
		{"bad mood", PlaylistInput{Name: "Rain", Mood: "gloomy", Songs: []string{"x"}}, "Invalid mood"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePlaylist(ctx, tt.in)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("Expected InputError, got %v", err)
			}
			if !strings.HasPrefix(inputErr.Msg, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, inputErr.Msg)
			}
		})
	}
}

func TestDeletePlaylist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist, err := f.svc.CreatePlaylist(ctx, PlaylistInput{Name: "Late", Mood: "calm", Songs: []string{"song-1"}})
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if playlist.CreatedBy != "admin" || playlist.Mood != models.MoodCalm {
		t.Errorf("Unexpected playlist: %+v", playlist)
	}

	if err := f.svc.DeletePlaylist(ctx, playlist.ID); err != nil {
		t.Fatalf("DeletePlaylist failed: %v", err)
	}
	if err := f.svc.DeletePlaylist(ctx, playlist.ID); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Expected ErrPlaylistNotFound, got %v", err)
	}
}

func TestInboxIngest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := t.TempDir()
	cover := filepath.Join(t.TempDir(), "default.png")
	if err := os.WriteFile(cover, pngBytes, 0644); err != nil {
		t.Fatalf("Failed to write cover: %v", err)
	}

	inbox := f.svc.NewInbox(InboxOptions{Root: root, DefaultCover: cover, Origin: "http://example.test"})
	if err := inbox.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout failed: %v", err)
	}

	for _, name := range []string{"one.wav", "two.wav"} {
		if err := os.WriteFile(filepath.Join(root, "sad", name), wavBytes(2), 0644); err != nil {
			t.Fatalf("Failed to write track: %v", err)
		}
	}
	// Ignored: not audio, hidden, and outside a mood folder.
	os.WriteFile(filepath.Join(root, "sad", "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, "sad", ".hidden.wav"), wavBytes(1), 0644)
	os.WriteFile(filepath.Join(root, "loose.wav"), wavBytes(1), 0644)

	added, err := inbox.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("Expected 2 songs added, got %d", added)
	}

	songs, err := f.svc.ListSongs(ctx)
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	if len(songs) != 2 {
		t.Fatalf("Expected 2 songs, got %d", len(songs))
	}
	for _, s := range songs {
		if s.Mood != "sad" || s.Language != "unknown" || s.Artist != metadata.UnknownArtist {
			t.Errorf("Unexpected song fields: %+v", s)
		}
		if !strings.HasPrefix(s.CoverPhotoURL, "http://example.test"+storage.URLPrefix) {
			t.Errorf("Expected default cover URL, got %q", s.CoverPhotoURL)
		}
	}

	for _, name := range []string{"one.wav", "two.wav"} {
		if _, err := os.Stat(filepath.Join(root, ProcessedDir, "sad", name)); err != nil {
			t.Errorf("Expected %s in processed folder: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(root, "sad", name)); !os.IsNotExist(err) {
			t.Errorf("Expected %s removed from inbox", name)
		}
	}

	// A second scan finds nothing new.
	added, err = inbox.Scan(ctx)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if added != 0 {
		t.Errorf("Expected nothing added on rescan, got %d", added)
	}

	if got := testutil.ToFloat64(f.metrics.SongsIngested.WithLabelValues("inbox")); got != 2 {
		t.Errorf("Expected 2 inbox ingests, got %v", got)
	}
}

func TestInboxWithoutCover(t *testing.T) {
	f := newFixture(t)
	root := t.TempDir()
	inbox := f.svc.NewInbox(InboxOptions{Root: root})
	if err := inbox.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout failed: %v", err)
	}

	path := filepath.Join(root, "calm", "track.wav")
	if err := os.WriteFile(path, wavBytes(1), 0644); err != nil {
		t.Fatalf("Failed to write track: %v", err)
	}

	if _, err := inbox.IngestFile(context.Background(), path); !errors.Is(err, ErrNoCover) {
		t.Errorf("Expected ErrNoCover, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected file to stay in the inbox: %v", err)
	}
}

func TestInboxMoodFor(t *testing.T) {
	f := newFixture(t)
	inbox := f.svc.NewInbox(InboxOptions{Root: "/inbox"})

	tests := []struct {
		path string
		mood models.Mood
		ok   bool
	}{
		{"/inbox/happy/a.mp3", models.MoodHappy, true},
		{"/inbox/Energetic/a.mp3", models.MoodEnergetic, true},
		{"/inbox/a.mp3", "", false},
		{"/inbox/happy/sub/a.mp3", "", false},
		{"/inbox/unknown/a.mp3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mood, ok := inbox.MoodFor(tt.path)
			if ok != tt.ok || mood != tt.mood {
				t.Errorf("MoodFor(%q) = %q, %v; want %q, %v", tt.path, mood, ok, tt.mood, tt.ok)
			}
		})
	}
}
