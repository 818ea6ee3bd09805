package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"moodtune/pkg/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// sqliteDriver is go-sqlite3 with a fold() SQL function. SQLite's LOWER only
// folds ASCII, so case-insensitive matching goes through strings.ToLower.
const sqliteDriver = "sqlite3_fold"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// SQLiteStore wraps a *sql.DB and implements Store on an embedded SQLite
// file. It is used for single-node deployments and in tests. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe.
type SQLiteStore struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for the hot paths
	getSongStmt       *sql.Stmt
	incSongPlaysStmt  *sql.Stmt
	incUserPlaysStmt  *sql.Stmt
	adjustLikesStmt   *sql.Stmt
	getUserByIDStmt   *sql.Stmt
	getLikedSongsStmt *sql.Stmt
}

const userColumns = `id, name, email, password_hash, google_id, otp, otp_expires, is_verified, role, created_at, updated_at`

const songColumns = `id, title, artist, song_url, cover_photo_url, mood, language, duration, play_count, like_count, created_at, updated_at`

const playlistColumns = `id, name, description, cover_photo_url, created_by, mood, created_at, updated_at`

// NewSQLiteStore opens (or creates) a SQLite database at the provided path
// and ensures all required tables and indices exist. Caller should Close()
// it when finished.
func NewSQLiteStore(dbPath string, maxConnections int, logger *logrus.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := sql.Open(sqliteDriver, dbPath+"?cache=shared&mode=rwc&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with fewer connections
	if maxConnections < 1 {
		maxConnections = 1
	}
	conn.SetMaxOpenConns(maxConnections)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &SQLiteStore{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("SQLite store initialized")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *SQLiteStore) createTables() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		google_id TEXT NOT NULL DEFAULT '',
		otp TEXT NOT NULL DEFAULT '',
		otp_expires DATETIME,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	// Song references are weak: no foreign keys on song_id.
	likedSongsTable := `
	CREATE TABLE IF NOT EXISTS user_liked_songs (
		user_id TEXT NOT NULL,
		song_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, song_id)
	);`

	songPlaysTable := `
	CREATE TABLE IF NOT EXISTS user_song_plays (
		user_id TEXT NOT NULL,
		song_id TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, song_id)
	);`

	songsTable := `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		song_url TEXT NOT NULL,
		cover_photo_url TEXT NOT NULL,
		mood TEXT NOT NULL,
		language TEXT NOT NULL,
		play_count INTEGER DEFAULT 0,
		like_count INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		cover_photo_url TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT 'admin',
		mood TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	playlistSongsTable := `
	CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		song_id TEXT NOT NULL,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		PRIMARY KEY (playlist_id, position)
	);`

	indices := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id) WHERE google_id != '';",
		"CREATE INDEX IF NOT EXISTS idx_songs_created ON songs(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_songs_play_count ON songs(play_count);",
		"CREATE INDEX IF NOT EXISTS idx_songs_search ON songs(title, artist);",
		"CREATE INDEX IF NOT EXISTS idx_playlists_mood ON playlists(mood);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_song ON playlist_songs(song_id);",
	}

	tables := []string{usersTable, likedSongsTable, songPlaysTable, songsTable, playlistsTable, playlistSongsTable}
	for _, table := range tables {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run; keep them lightweight.
func (db *SQLiteStore) runMigrations() error {
	// Migration 1: songs.duration arrived with metadata extraction
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('songs')
		WHERE name = 'duration'`).Scan(&columnExists)
	if err != nil {
		return err
	}

	if !columnExists {
		if _, err := db.conn.Exec("ALTER TABLE songs ADD COLUMN duration INTEGER NOT NULL DEFAULT 0"); err != nil {
			return err
		}
		db.logger.Info("Added duration column to songs table")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements for better performance
func (db *SQLiteStore) prepareStatements() error {
	var err error

	db.getSongStmt, err = db.conn.Prepare(`SELECT ` + songColumns + ` FROM songs WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get song statement: %w", err)
	}

	db.incSongPlaysStmt, err = db.conn.Prepare(`
		UPDATE songs SET play_count = COALESCE(play_count, 0) + 1, updated_at = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment plays statement: %w", err)
	}

	db.incUserPlaysStmt, err = db.conn.Prepare(`
		INSERT INTO user_song_plays (user_id, song_id, count)
		SELECT ?, ?, 1 WHERE EXISTS (SELECT 1 FROM users WHERE id = ?)
		ON CONFLICT(user_id, song_id) DO UPDATE SET count = count + 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare user play statement: %w", err)
	}

	db.adjustLikesStmt, err = db.conn.Prepare(`
		UPDATE songs SET like_count = MAX(COALESCE(like_count, 0) + ?, 0), updated_at = ?
		WHERE id = ?
		RETURNING like_count`)
	if err != nil {
		return fmt.Errorf("failed to prepare adjust likes statement: %w", err)
	}

	db.getUserByIDStmt, err = db.conn.Prepare(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get user statement: %w", err)
	}

	db.getLikedSongsStmt, err = db.conn.Prepare(`
		SELECT song_id FROM user_liked_songs WHERE user_id = ? ORDER BY position`)
	if err != nil {
		return fmt.Errorf("failed to prepare liked songs statement: %w", err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (db *SQLiteStore) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection and prepared statements.
func (db *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		db.getSongStmt,
		db.incSongPlaysStmt,
		db.incUserPlaysStmt,
		db.adjustLikesStmt,
		db.getUserByIDStmt,
		db.getLikedSongsStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return db.conn.Close()
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// escapeLike escapes LIKE wildcards so input is matched literally.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// --- users ---

// CreateUser inserts a new user, assigning its ID and timestamps.
func (db *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = newID()
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	var otpExpires sql.NullTime
	if !user.OTPExpires.IsZero() {
		otpExpires = sql.NullTime{Time: user.OTPExpires.UTC(), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.GoogleID,
		user.OTP, otpExpires, user.IsVerified, user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if user.LikedSongs == nil {
		user.LikedSongs = []string{}
	}
	if user.SongPlays == nil {
		user.SongPlays = map[string]int64{}
	}
	return nil
}

// GetUserByID returns a user with its liked set and play tally.
func (db *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(db.getUserByIDStmt.QueryRowContext(ctx, id))
	if err != nil {
		return nil, err
	}
	return db.loadUserRelations(ctx, user)
}

// GetUserByEmail returns the user registered with email.
func (db *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, err
	}
	return db.loadUserRelations(ctx, user)
}

// GetUserByGoogleID returns the user linked to a Google account.
func (db *SQLiteStore) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	user, err := scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID))
	if err != nil {
		return nil, err
	}
	return db.loadUserRelations(ctx, user)
}

// ListUsers returns every user, newest first.
func (db *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		if _, err := db.loadUserRelations(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// SetUserOTP replaces the pending OTP and its expiry.
func (db *SQLiteStore) SetUserOTP(ctx context.Context, id, otp string, expires time.Time) error {
	return db.execOne(ctx, `UPDATE users SET otp = ?, otp_expires = ?, updated_at = ? WHERE id = ?`,
		otp, expires.UTC(), now(), id)
}

// MarkUserVerified flags the account verified and clears the OTP fields.
func (db *SQLiteStore) MarkUserVerified(ctx context.Context, id string) error {
	return db.execOne(ctx, `UPDATE users SET is_verified = TRUE, otp = '', otp_expires = NULL, updated_at = ? WHERE id = ?`,
		now(), id)
}

// LinkGoogleID attaches a Google identity to an account and marks it verified.
func (db *SQLiteStore) LinkGoogleID(ctx context.Context, id, googleID string, dropPassword bool) error {
	err := db.execOne(ctx, `
		UPDATE users SET google_id = ?, is_verified = TRUE, otp = '', otp_expires = NULL,
			password_hash = CASE WHEN ? THEN '' ELSE password_hash END, updated_at = ?
		WHERE id = ?`,
		googleID, dropPassword, now(), id)
	if isUniqueViolation(err) {
		return fmt.Errorf("google account already linked: %w", err)
	}
	return err
}

// SetUserRole changes the user's role.
func (db *SQLiteStore) SetUserRole(ctx context.Context, id, role string) error {
	return db.execOne(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, now(), id)
}

// AddLikedSong appends songID to the user's liked set.
func (db *SQLiteStore) AddLikedSong(ctx context.Context, userID, songID string) ([]string, error) {
	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_liked_songs (user_id, song_id, position)
		SELECT ?, ?, COALESCE((SELECT MAX(position) FROM user_liked_songs WHERE user_id = ?), 0) + 1
		WHERE EXISTS (SELECT 1 FROM users WHERE id = ?)
		ON CONFLICT(user_id, song_id) DO NOTHING`,
		userID, songID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to add liked song: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if exists, err := db.userExists(ctx, userID); err != nil {
			return nil, err
		} else if !exists {
			return nil, ErrNotFound
		}
	}
	return db.likedSongs(ctx, userID)
}

// RemoveLikedSong pulls songID from the user's liked set.
func (db *SQLiteStore) RemoveLikedSong(ctx context.Context, userID, songID string) ([]string, error) {
	if exists, err := db.userExists(ctx, userID); err != nil {
		return nil, err
	} else if !exists {
		return nil, ErrNotFound
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM user_liked_songs WHERE user_id = ? AND song_id = ?`, userID, songID); err != nil {
		return nil, fmt.Errorf("failed to remove liked song: %w", err)
	}
	return db.likedSongs(ctx, userID)
}

// IncrementUserPlay bumps the user's play tally for songID.
func (db *SQLiteStore) IncrementUserPlay(ctx context.Context, userID, songID string) error {
	result, err := db.incUserPlaysStmt.ExecContext(ctx, userID, songID, userID)
	if err != nil {
		return fmt.Errorf("failed to increment user play: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *SQLiteStore) userExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM users WHERE id = ?`, id).Scan(&exists)
	return exists, err
}

func (db *SQLiteStore) likedSongs(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.getLikedSongsStmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	liked := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked = append(liked, id)
	}
	return liked, rows.Err()
}

func (db *SQLiteStore) songPlays(ctx context.Context, userID string) (map[string]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT song_id, count FROM user_song_plays WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plays := map[string]int64{}
	for rows.Next() {
		var id string
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		plays[id] = count
	}
	return plays, rows.Err()
}

func (db *SQLiteStore) loadUserRelations(ctx context.Context, user *models.User) (*models.User, error) {
	liked, err := db.likedSongs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liked songs: %w", err)
	}
	plays, err := db.songPlays(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load song plays: %w", err)
	}
	user.LikedSongs = liked
	user.SongPlays = plays
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var otpExpires sql.NullTime
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.GoogleID,
		&user.OTP, &otpExpires, &user.IsVerified, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if otpExpires.Valid {
		user.OTPExpires = otpExpires.Time
	}
	return &user, nil
}

// --- songs ---

// CreateSong inserts a new song with zeroed counters.
func (db *SQLiteStore) CreateSong(ctx context.Context, song *models.Song) error {
	song.ID = newID()
	song.CreatedAt = now()
	song.UpdatedAt = song.CreatedAt
	song.PlayCount = 0
	song.LikeCount = 0

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO songs (`+songColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		song.ID, song.Title, song.Artist, song.SongURL, song.CoverPhotoURL, song.Mood,
		song.Language, song.Duration, song.PlayCount, song.LikeCount, song.CreatedAt, song.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}
	return nil
}

// GetSong returns a single song by its ID.
func (db *SQLiteStore) GetSong(ctx context.Context, id string) (*models.Song, error) {
	song, err := scanSong(db.getSongStmt.QueryRowContext(ctx, id))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			db.logger.WithError(err).WithField("song_id", id).Error("Failed to get song by ID")
		}
		return nil, err
	}
	return song, nil
}

// GetSongsByIDs returns the existing songs among ids.
func (db *SQLiteStore) GetSongsByIDs(ctx context.Context, ids []string) ([]models.Song, error) {
	if len(ids) == 0 {
		return []models.Song{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// ListSongs returns every song in the requested order.
func (db *SQLiteStore) ListSongs(ctx context.Context, order models.SongOrder) ([]models.Song, error) {
	orderBy := "created_at DESC, rowid DESC"
	if order == models.OrderMostPlayed {
		orderBy = "play_count DESC, created_at DESC"
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT `+songColumns+` FROM songs ORDER BY `+orderBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// SearchSongs performs a case-insensitive LIKE search over title and artist.
func (db *SQLiteStore) SearchSongs(ctx context.Context, query string, limit int) ([]models.Song, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs
		WHERE fold(title) LIKE ? ESCAPE '\' OR fold(artist) LIKE ? ESCAPE '\'
		ORDER BY rowid
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// RecentSongs returns the newest songs.
func (db *SQLiteStore) RecentSongs(ctx context.Context, limit int) ([]models.Song, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// RandomSongs returns a uniform random sample of songs.
func (db *SQLiteStore) RandomSongs(ctx context.Context, size int) ([]models.Song, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs ORDER BY RANDOM() LIMIT ?`, size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// AdjustSongLikes applies delta to the like counter, floored at zero.
func (db *SQLiteStore) AdjustSongLikes(ctx context.Context, id string, delta int64) (int64, error) {
	var count int64
	err := db.adjustLikesStmt.QueryRowContext(ctx, delta, now(), id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to adjust like count: %w", err)
	}
	return count, nil
}

// IncrementSongPlays bumps the global play counter.
func (db *SQLiteStore) IncrementSongPlays(ctx context.Context, id string) error {
	result, err := db.incSongPlaysStmt.ExecContext(ctx, now(), id)
	if err != nil {
		return fmt.Errorf("failed to increment play count: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSong removes the song row. References elsewhere are left untouched.
func (db *SQLiteStore) DeleteSong(ctx context.Context, id string) error {
	return db.execOne(ctx, `DELETE FROM songs WHERE id = ?`, id)
}

// BackfillSongCounters zeroes NULL counters left by older schemas.
func (db *SQLiteStore) BackfillSongCounters(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE songs SET play_count = COALESCE(play_count, 0), like_count = COALESCE(like_count, 0)
		WHERE play_count IS NULL OR like_count IS NULL`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// scanSongRows scans song result sets into a slice. Callers must have
// already deferred rows.Close().
func scanSongRows(rows *sql.Rows) ([]models.Song, error) {
	songs := []models.Song{}
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}

func scanSong(row rowScanner) (*models.Song, error) {
	var song models.Song
	var playCount, likeCount sql.NullInt64
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.SongURL, &song.CoverPhotoURL,
		&song.Mood, &song.Language, &song.Duration, &playCount, &likeCount,
		&song.CreatedAt, &song.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	song.PlayCount = playCount.Int64
	song.LikeCount = likeCount.Int64
	return &song, nil
}

// --- playlists ---

// CreatePlaylist inserts a playlist and its ordered song list.
func (db *SQLiteStore) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	playlist.ID = newID()
	playlist.CreatedAt = now()
	playlist.UpdatedAt = playlist.CreatedAt
	if playlist.CreatedBy == "" {
		playlist.CreatedBy = "admin"
	}

	// The playlist row and its membership rows form one document.
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (`+playlistColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		playlist.ID, playlist.Name, playlist.Description, playlist.CoverPhotoURL,
		playlist.CreatedBy, string(playlist.Mood), playlist.CreatedAt, playlist.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	for i, songID := range playlist.Songs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_songs (playlist_id, position, song_id) VALUES (?, ?, ?)`,
			playlist.ID, i+1, songID); err != nil {
			return fmt.Errorf("failed to insert playlist song: %w", err)
		}
	}

	return tx.Commit()
}

// GetPlaylist returns a playlist with its song id list.
func (db *SQLiteStore) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	playlists, err := db.scanPlaylistRows(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		return nil, ErrNotFound
	}
	return &playlists[0], nil
}

// ListPlaylists returns all playlists, newest first.
func (db *SQLiteStore) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+playlistColumns+` FROM playlists ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return db.scanPlaylistRows(ctx, rows)
}

// FindPlaylistsByMood matches mood as a case-insensitive substring.
func (db *SQLiteStore) FindPlaylistsByMood(ctx context.Context, mood string) ([]models.Playlist, error) {
	pattern := "%" + escapeLike(strings.ToLower(mood)) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+playlistColumns+` FROM playlists
		WHERE fold(mood) LIKE ? ESCAPE '\'
		ORDER BY created_at, rowid`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return db.scanPlaylistRows(ctx, rows)
}

// PullSongFromPlaylists removes songID from every playlist's song list.
func (db *SQLiteStore) PullSongFromPlaylists(ctx context.Context, songID string) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM playlist_songs WHERE song_id = ?`, songID)
	if err != nil {
		return 0, fmt.Errorf("failed to pull song from playlists: %w", err)
	}
	return result.RowsAffected()
}

// DeletePlaylist deletes the playlist and its membership rows.
func (db *SQLiteStore) DeletePlaylist(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ?`, id); err != nil {
		return err
	}
	return db.execOne(ctx, `DELETE FROM playlists WHERE id = ?`, id)
}

// scanPlaylistRows scans playlists and then loads their song lists. It
// drains rows before issuing the second query.
func (db *SQLiteStore) scanPlaylistRows(ctx context.Context, rows *sql.Rows) ([]models.Playlist, error) {
	playlists := []models.Playlist{}
	for rows.Next() {
		var p models.Playlist
		var mood string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CoverPhotoURL, &p.CreatedBy,
			&mood, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Mood = models.Mood(mood)
		p.Songs = []string{}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range playlists {
		songRows, err := db.conn.QueryContext(ctx, `
			SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position`, playlists[i].ID)
		if err != nil {
			return nil, err
		}
		for songRows.Next() {
			var songID string
			if err := songRows.Scan(&songID); err != nil {
				songRows.Close()
				return nil, err
			}
			playlists[i].Songs = append(playlists[i].Songs, songID)
		}
		err = songRows.Err()
		songRows.Close()
		if err != nil {
			return nil, err
		}
	}

	return playlists, nil
}

// execOne runs a statement that must affect exactly one row.
func (db *SQLiteStore) execOne(ctx context.Context, query string, args ...any) error {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
