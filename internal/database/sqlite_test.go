package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), 1, logger)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createSong(t *testing.T, store Store, title, artist, mood string) models.Song {
	t.Helper()
	song := models.Song{
		Title:         title,
		Artist:        artist,
		SongURL:       "/uploads/songs/" + title + ".mp3",
		CoverPhotoURL: "/uploads/covers/" + title + ".jpg",
		Mood:          mood,
		Language:      "english",
		Duration:      180,
	}
	if err := store.CreateSong(context.Background(), &song); err != nil {
		t.Fatalf("Failed to create song: %v", err)
	}
	return song
}

func TestSQLiteUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.User{
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		OTP:          "123456",
		OTPExpires:   time.Now().Add(10 * time.Minute),
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		if err := store.CreateUser(ctx, &user); err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
		if user.ID == "" {
			t.Fatal("Expected user ID to be assigned")
		}

		got, err := store.GetUserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("Failed to get user by email: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("Expected ID %s, got %s", user.ID, got.ID)
		}
		if got.Role != models.RoleUser {
			t.Errorf("Expected role %q, got %q", models.RoleUser, got.Role)
		}
		if got.IsVerified {
			t.Error("Expected new user to be unverified")
		}
		if got.OTP != "123456" || got.OTPExpires.IsZero() {
			t.Errorf("Expected OTP to be stored, got %q / %v", got.OTP, got.OTPExpires)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		dup := models.User{Name: "Other", Email: "alice@example.com"}
		if err := store.CreateUser(ctx, &dup); !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("Expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("MarkVerifiedClearsOTP", func(t *testing.T) {
		if err := store.MarkUserVerified(ctx, user.ID); err != nil {
			t.Fatalf("Failed to verify user: %v", err)
		}
		got, err := store.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("Failed to get user: %v", err)
		}
		if !got.IsVerified {
			t.Error("Expected user to be verified")
		}
		if got.OTP != "" || !got.OTPExpires.IsZero() {
			t.Errorf("Expected OTP cleared, got %q / %v", got.OTP, got.OTPExpires)
		}
	})

	t.Run("LinkGoogleID", func(t *testing.T) {
		if err := store.LinkGoogleID(ctx, user.ID, "google-1", false); err != nil {
			t.Fatalf("Failed to link google id: %v", err)
		}
		got, err := store.GetUserByGoogleID(ctx, "google-1")
		if err != nil {
			t.Fatalf("Failed to get user by google id: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("Expected ID %s, got %s", user.ID, got.ID)
		}
	})

	t.Run("LinkGoogleIDDropsPassword", func(t *testing.T) {
		pending := models.User{Name: "Pending", Email: "pending@example.com", PasswordHash: "hash"}
		if err := store.CreateUser(ctx, &pending); err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
		if err := store.LinkGoogleID(ctx, pending.ID, "google-2", true); err != nil {
			t.Fatalf("Failed to link google id: %v", err)
		}
		got, err := store.GetUserByID(ctx, pending.ID)
		if err != nil {
			t.Fatalf("Failed to get user: %v", err)
		}
		if got.PasswordHash != "" || !got.IsVerified {
			t.Errorf("Expected cleared hash on verified account, got %q verified=%v", got.PasswordHash, got.IsVerified)
		}

		kept, _ := store.GetUserByID(ctx, user.ID)
		if kept.PasswordHash != "hash" {
			t.Error("Expected link without dropPassword to keep the hash")
		}
	})

	t.Run("MissingUser", func(t *testing.T) {
		if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if err := store.SetUserRole(ctx, "missing", models.RoleAdmin); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteLikesAndPlays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.User{Name: "Bob", Email: "bob@example.com"}
	if err := store.CreateUser(ctx, &user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	first := createSong(t, store, "One", "Band", "happy")
	second := createSong(t, store, "Two", "Band", "happy")

	t.Run("LikedSetPreservesOrderAndIgnoresDuplicates", func(t *testing.T) {
		if _, err := store.AddLikedSong(ctx, user.ID, second.ID); err != nil {
			t.Fatalf("Failed to like song: %v", err)
		}
		liked, err := store.AddLikedSong(ctx, user.ID, first.ID)
		if err != nil {
			t.Fatalf("Failed to like song: %v", err)
		}
		liked, err = store.AddLikedSong(ctx, user.ID, first.ID)
		if err != nil {
			t.Fatalf("Failed to like song again: %v", err)
		}
		if len(liked) != 2 || liked[0] != second.ID || liked[1] != first.ID {
			t.Errorf("Unexpected liked set: %v", liked)
		}

		liked, err = store.RemoveLikedSong(ctx, user.ID, second.ID)
		if err != nil {
			t.Fatalf("Failed to unlike song: %v", err)
		}
		if len(liked) != 1 || liked[0] != first.ID {
			t.Errorf("Unexpected liked set after removal: %v", liked)
		}
	})

	t.Run("LikeCounterFloorsAtZero", func(t *testing.T) {
		count, err := store.AdjustSongLikes(ctx, first.ID, 1)
		if err != nil || count != 1 {
			t.Fatalf("Expected count 1, got %d (%v)", count, err)
		}
		count, err = store.AdjustSongLikes(ctx, first.ID, -1)
		if err != nil || count != 0 {
			t.Fatalf("Expected count 0, got %d (%v)", count, err)
		}
		count, err = store.AdjustSongLikes(ctx, first.ID, -1)
		if err != nil || count != 0 {
			t.Errorf("Expected count to stay 0, got %d (%v)", count, err)
		}
		if _, err := store.AdjustSongLikes(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PlayCounters", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := store.IncrementSongPlays(ctx, first.ID); err != nil {
				t.Fatalf("Failed to increment plays: %v", err)
			}
			if err := store.IncrementUserPlay(ctx, user.ID, first.ID); err != nil {
				t.Fatalf("Failed to increment user play: %v", err)
			}
		}

		song, err := store.GetSong(ctx, first.ID)
		if err != nil {
			t.Fatalf("Failed to get song: %v", err)
		}
		if song.PlayCount != 3 {
			t.Errorf("Expected play count 3, got %d", song.PlayCount)
		}

		got, err := store.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("Failed to get user: %v", err)
		}
		if got.SongPlays[first.ID] != 3 {
			t.Errorf("Expected 3 user plays, got %d", got.SongPlays[first.ID])
		}

		if err := store.IncrementUserPlay(ctx, "missing", first.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for missing user, got %v", err)
		}
		if err := store.IncrementSongPlays(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for missing song, got %v", err)
		}
	})
}

func TestSQLiteSongQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createSong(t, store, "Sunny Day", "The Brights", "happy")
	createSong(t, store, "Rainy Night", "Gloom", "sad")
	createSong(t, store, "100% Pure", "Percent", "calm")

	t.Run("SearchIsCaseInsensitive", func(t *testing.T) {
		songs, err := store.SearchSongs(ctx, "sunny", 20)
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(songs) != 1 || songs[0].Title != "Sunny Day" {
			t.Errorf("Unexpected search results: %+v", songs)
		}

		songs, err = store.SearchSongs(ctx, "GLOOM", 20)
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(songs) != 1 || songs[0].Artist != "Gloom" {
			t.Errorf("Expected artist match, got %+v", songs)
		}
	})

	t.Run("SearchTreatsWildcardsLiterally", func(t *testing.T) {
		songs, err := store.SearchSongs(ctx, "%", 20)
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(songs) != 1 || songs[0].Title != "100% Pure" {
			t.Errorf("Expected only the literal match, got %+v", songs)
		}
	})

	t.Run("SearchRespectsLimit", func(t *testing.T) {
		songs, err := store.SearchSongs(ctx, "n", 1)
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(songs) != 1 {
			t.Errorf("Expected 1 result, got %d", len(songs))
		}
	})

	t.Run("RecentNewestFirst", func(t *testing.T) {
		songs, err := store.RecentSongs(ctx, 2)
		if err != nil {
			t.Fatalf("Failed to get recent songs: %v", err)
		}
		if len(songs) != 2 || songs[0].Title != "100% Pure" {
			t.Errorf("Unexpected recent songs: %+v", songs)
		}
	})

	t.Run("RandomSampleBounded", func(t *testing.T) {
		songs, err := store.RandomSongs(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to sample songs: %v", err)
		}
		if len(songs) != 3 {
			t.Errorf("Expected all 3 songs, got %d", len(songs))
		}
	})

	t.Run("BackfillIsIdempotent", func(t *testing.T) {
		if _, err := store.conn.Exec(`UPDATE songs SET play_count = NULL WHERE title = 'Rainy Night'`); err != nil {
			t.Fatalf("Failed to null counter: %v", err)
		}
		changed, err := store.BackfillSongCounters(ctx)
		if err != nil || changed != 1 {
			t.Fatalf("Expected 1 changed song, got %d (%v)", changed, err)
		}
		changed, err = store.BackfillSongCounters(ctx)
		if err != nil || changed != 0 {
			t.Errorf("Expected second backfill to change nothing, got %d (%v)", changed, err)
		}
	})
}

func TestSQLiteFoldsNonASCIICase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createSong(t, store, "Ébène", "Zoë Ångström", "calm")
	playlist := models.Playlist{Name: "Grün", Mood: models.Mood("Fröhlich")}
	if err := store.CreatePlaylist(ctx, &playlist); err != nil {
		t.Fatalf("Failed to create playlist: %v", err)
	}

	for _, query := range []string{"ébène", "ÉBÈNE", "ångström"} {
		songs, err := store.SearchSongs(ctx, query, 20)
		if err != nil {
			t.Fatalf("Failed to search %q: %v", query, err)
		}
		if len(songs) != 1 {
			t.Errorf("Expected %q to match, got %d songs", query, len(songs))
		}
	}

	found, err := store.FindPlaylistsByMood(ctx, "FRÖHLICH")
	if err != nil {
		t.Fatalf("Failed to find playlists: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("Expected mood match across non-ASCII case, got %d", len(found))
	}
}

func TestSQLitePlaylists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createSong(t, store, "A", "X", "happy")
	b := createSong(t, store, "B", "X", "happy")

	playlist := models.Playlist{Name: "Good Vibes", Mood: models.MoodHappy, Songs: []string{b.ID, a.ID}}
	if err := store.CreatePlaylist(ctx, &playlist); err != nil {
		t.Fatalf("Failed to create playlist: %v", err)
	}
	if playlist.CreatedBy != "admin" {
		t.Errorf("Expected createdBy admin, got %q", playlist.CreatedBy)
	}

	t.Run("FindByMoodCaseInsensitive", func(t *testing.T) {
		found, err := store.FindPlaylistsByMood(ctx, "HAPPY")
		if err != nil {
			t.Fatalf("Failed to find playlists: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("Expected 1 playlist, got %d", len(found))
		}
		if found[0].Songs[0] != b.ID || found[0].Songs[1] != a.ID {
			t.Errorf("Expected song order preserved, got %v", found[0].Songs)
		}

		found, err = store.FindPlaylistsByMood(ctx, "sad")
		if err != nil {
			t.Fatalf("Failed to find playlists: %v", err)
		}
		if len(found) != 0 {
			t.Errorf("Expected no playlists, got %d", len(found))
		}
	})

	t.Run("PullSong", func(t *testing.T) {
		changed, err := store.PullSongFromPlaylists(ctx, b.ID)
		if err != nil || changed != 1 {
			t.Fatalf("Expected 1 change, got %d (%v)", changed, err)
		}
		got, err := store.GetPlaylist(ctx, playlist.ID)
		if err != nil {
			t.Fatalf("Failed to get playlist: %v", err)
		}
		if len(got.Songs) != 1 || got.Songs[0] != a.ID {
			t.Errorf("Expected only %s, got %v", a.ID, got.Songs)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.DeletePlaylist(ctx, playlist.ID); err != nil {
			t.Fatalf("Failed to delete playlist: %v", err)
		}
		if err := store.DeletePlaylist(ctx, playlist.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
