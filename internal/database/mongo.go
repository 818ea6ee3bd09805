package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	songsCollection     = "songs"
	playlistsCollection = "playlists"
)

// MongoStore implements Store on MongoDB. Documents keep the field names of
// the existing collections so data written by earlier deployments is read
// back unchanged.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *logrus.Logger
}

type userDoc struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	Name       string               `bson:"name"`
	Email      string               `bson:"email"`
	Password   string               `bson:"password,omitempty"`
	GoogleID   string               `bson:"googleId,omitempty"`
	OTP        string               `bson:"otp,omitempty"`
	OTPExpires *time.Time           `bson:"otpExpires,omitempty"`
	IsVerified bool                 `bson:"isVerified"`
	Role       string               `bson:"role"`
	LikedSongs []primitive.ObjectID `bson:"likedSongs"`
	SongPlays  map[string]int64     `bson:"songPlays"`
	CreatedAt  time.Time            `bson:"createdAt"`
	UpdatedAt  time.Time            `bson:"updatedAt"`
}

type songDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Artist        string             `bson:"artist"`
	SongURL       string             `bson:"songUrl"`
	CoverPhotoURL string             `bson:"coverPhotoUrl"`
	Mood          string             `bson:"mood"`
	Language      string             `bson:"language"`
	Duration      int                `bson:"duration"`
	PlayCount     *int64             `bson:"playCount,omitempty"`
	LikeCount     *int64             `bson:"likeCount,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

type playlistDoc struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Name          string               `bson:"name"`
	Description   string               `bson:"description,omitempty"`
	Songs         []primitive.ObjectID `bson:"songs"`
	CoverPhotoURL string               `bson:"coverPhotoUrl,omitempty"`
	CreatedBy     string               `bson:"createdBy"`
	Mood          string               `bson:"mood"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

// NewMongoStore connects to uri, pings the server and ensures indices.
func NewMongoStore(ctx context.Context, uri, dbName string, maxConnections int, logger *logrus.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri)
	if maxConnections > 0 {
		clientOpts.SetMaxPoolSize(uint64(maxConnections))
	}

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}

	if err := store.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.WithField("database", dbName).Info("MongoDB store initialized")
	return store, nil
}

func (m *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := m.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.songs().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "playCount", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = m.playlists().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "songs", Value: 1}},
	})
	return err
}

func (m *MongoStore) users() *mongo.Collection     { return m.db.Collection(usersCollection) }
func (m *MongoStore) songs() *mongo.Collection     { return m.db.Collection(songsCollection) }
func (m *MongoStore) playlists() *mongo.Collection { return m.db.Collection(playlistsCollection) }

// Ping verifies the primary is reachable.
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := objectID(id)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

func hexIDs(oids []primitive.ObjectID) []string {
	ids := make([]string, 0, len(oids))
	for _, oid := range oids {
		ids = append(ids, oid.Hex())
	}
	return ids
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// --- users ---

func (d *userDoc) toModel() *models.User {
	user := &models.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		GoogleID:     d.GoogleID,
		OTP:          d.OTP,
		IsVerified:   d.IsVerified,
		Role:         d.Role,
		LikedSongs:   hexIDs(d.LikedSongs),
		SongPlays:    d.SongPlays,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.OTPExpires != nil {
		user.OTPExpires = *d.OTPExpires
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.SongPlays == nil {
		user.SongPlays = map[string]int64{}
	}
	return user
}

// CreateUser inserts a new user document.
func (m *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	ts := time.Now().UTC()
	doc := userDoc{
		ID:         primitive.NewObjectID(),
		Name:       user.Name,
		Email:      user.Email,
		Password:   user.PasswordHash,
		GoogleID:   user.GoogleID,
		OTP:        user.OTP,
		IsVerified: user.IsVerified,
		Role:       user.Role,
		LikedSongs: []primitive.ObjectID{},
		SongPlays:  map[string]int64{},
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if !user.OTPExpires.IsZero() {
		expires := user.OTPExpires.UTC()
		doc.OTPExpires = &expires
	}

	if _, err := m.users().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	user.LikedSongs = []string{}
	user.SongPlays = map[string]int64{}
	return nil
}

func (m *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	if err := m.users().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.toModel(), nil
}

// GetUserByID returns a user by its hex id.
func (m *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return m.findUser(ctx, bson.M{"_id": oid})
}

// GetUserByEmail returns the user registered with email.
func (m *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

// GetUserByGoogleID returns the user linked to a Google account.
func (m *MongoStore) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	return m.findUser(ctx, bson.M{"googleId": googleID})
}

// ListUsers returns every user, newest first.
func (m *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := m.users().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, *doc.toModel())
	}
	return users, cursor.Err()
}

func (m *MongoStore) updateUser(ctx context.Context, id string, update bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := m.users().UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserOTP replaces the pending OTP and its expiry.
func (m *MongoStore) SetUserOTP(ctx context.Context, id, otp string, expires time.Time) error {
	return m.updateUser(ctx, id, bson.M{"$set": bson.M{
		"otp":        otp,
		"otpExpires": expires.UTC(),
		"updatedAt":  time.Now().UTC(),
	}})
}

// MarkUserVerified flags the account verified and clears the OTP fields.
func (m *MongoStore) MarkUserVerified(ctx context.Context, id string) error {
	return m.updateUser(ctx, id, bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"otp": "", "otpExpires": ""},
	})
}

// LinkGoogleID attaches a Google identity to an account and marks it verified.
func (m *MongoStore) LinkGoogleID(ctx context.Context, id, googleID string, dropPassword bool) error {
	unset := bson.M{"otp": "", "otpExpires": ""}
	if dropPassword {
		unset["password"] = ""
	}
	return m.updateUser(ctx, id, bson.M{
		"$set":   bson.M{"googleId": googleID, "isVerified": true, "updatedAt": time.Now().UTC()},
		"$unset": unset,
	})
}

// SetUserRole changes the user's role.
func (m *MongoStore) SetUserRole(ctx context.Context, id, role string) error {
	return m.updateUser(ctx, id, bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()}})
}

func (m *MongoStore) updateLikedSongs(ctx context.Context, userID, songID, op string) ([]string, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	sid, err := objectID(songID)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likedSongs": 1})

	var doc userDoc
	err = m.users().FindOneAndUpdate(ctx, bson.M{"_id": uid}, bson.M{op: bson.M{"likedSongs": sid}}, opts).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return hexIDs(doc.LikedSongs), nil
}

// AddLikedSong adds songID to the user's liked set.
func (m *MongoStore) AddLikedSong(ctx context.Context, userID, songID string) ([]string, error) {
	return m.updateLikedSongs(ctx, userID, songID, "$addToSet")
}

// RemoveLikedSong pulls songID from the user's liked set.
func (m *MongoStore) RemoveLikedSong(ctx context.Context, userID, songID string) ([]string, error) {
	return m.updateLikedSongs(ctx, userID, songID, "$pull")
}

// IncrementUserPlay bumps songPlays.<songID> on the user document.
func (m *MongoStore) IncrementUserPlay(ctx context.Context, userID, songID string) error {
	if _, err := objectID(songID); err != nil {
		return err
	}
	return m.updateUser(ctx, userID, bson.M{"$inc": bson.M{"songPlays." + songID: 1}})
}

// --- songs ---

func (d *songDoc) toModel() models.Song {
	song := models.Song{
		ID:            d.ID.Hex(),
		Title:         d.Title,
		Artist:        d.Artist,
		SongURL:       d.SongURL,
		CoverPhotoURL: d.CoverPhotoURL,
		Mood:          d.Mood,
		Language:      d.Language,
		Duration:      d.Duration,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.PlayCount != nil {
		song.PlayCount = *d.PlayCount
	}
	if d.LikeCount != nil {
		song.LikeCount = *d.LikeCount
	}
	return song
}

func decodeSongs(ctx context.Context, cursor *mongo.Cursor) ([]models.Song, error) {
	defer cursor.Close(ctx)

	songs := []models.Song{}
	for cursor.Next(ctx) {
		var doc songDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		songs = append(songs, doc.toModel())
	}
	return songs, cursor.Err()
}

// CreateSong inserts a new song with zeroed counters.
func (m *MongoStore) CreateSong(ctx context.Context, song *models.Song) error {
	ts := time.Now().UTC()
	var zero int64
	doc := songDoc{
		ID:            primitive.NewObjectID(),
		Title:         song.Title,
		Artist:        song.Artist,
		SongURL:       song.SongURL,
		CoverPhotoURL: song.CoverPhotoURL,
		Mood:          song.Mood,
		Language:      song.Language,
		Duration:      song.Duration,
		PlayCount:     &zero,
		LikeCount:     &zero,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if _, err := m.songs().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}

	song.ID = doc.ID.Hex()
	song.PlayCount = 0
	song.LikeCount = 0
	song.CreatedAt = ts
	song.UpdatedAt = ts
	return nil
}

// GetSong returns a single song by its hex id.
func (m *MongoStore) GetSong(ctx context.Context, id string) (*models.Song, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc songDoc
	if err := m.songs().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	song := doc.toModel()
	return &song, nil
}

// GetSongsByIDs returns the existing songs among ids. Malformed ids are
// skipped since they can never match.
func (m *MongoStore) GetSongsByIDs(ctx context.Context, ids []string) ([]models.Song, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.Song{}, nil
	}

	cursor, err := m.songs().Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	return decodeSongs(ctx, cursor)
}

// ListSongs returns every song in the requested order.
func (m *MongoStore) ListSongs(ctx context.Context, order models.SongOrder) ([]models.Song, error) {
	sort := bson.D{{Key: "createdAt", Value: -1}}
	if order == models.OrderMostPlayed {
		sort = bson.D{{Key: "playCount", Value: -1}, {Key: "createdAt", Value: -1}}
	}
	cursor, err := m.songs().Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	return decodeSongs(ctx, cursor)
}

// SearchSongs matches query case-insensitively against title or artist.
func (m *MongoStore) SearchSongs(ctx context.Context, query string, limit int) ([]models.Song, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"artist": pattern},
	}}
	cursor, err := m.songs().Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	return decodeSongs(ctx, cursor)
}

// RecentSongs returns the newest songs.
func (m *MongoStore) RecentSongs(ctx context.Context, limit int) ([]models.Song, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := m.songs().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeSongs(ctx, cursor)
}

// RandomSongs samples songs with $sample.
func (m *MongoStore) RandomSongs(ctx context.Context, size int) ([]models.Song, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}},
	}
	cursor, err := m.songs().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeSongs(ctx, cursor)
}

// AdjustSongLikes applies delta to likeCount. Decrements only match songs
// whose counter is still positive so the value never goes negative.
func (m *MongoStore) AdjustSongLikes(ctx context.Context, id string, delta int64) (int64, error) {
	oid, err := objectID(id)
	if err != nil {
		return 0, err
	}

	filter := bson.M{"_id": oid}
	if delta < 0 {
		filter["likeCount"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"likeCount": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc songDoc
	err = m.songs().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toModel().LikeCount, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) || delta >= 0 {
		return 0, notFound(err)
	}

	// Counter would drop below zero; clamp it instead.
	err = m.songs().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"likeCount": int64(0), "updatedAt": time.Now().UTC()}},
		opts).Decode(&doc)
	if err != nil {
		return 0, notFound(err)
	}
	return 0, nil
}

// IncrementSongPlays bumps playCount.
func (m *MongoStore) IncrementSongPlays(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := m.songs().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$inc": bson.M{"playCount": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSong removes the song document.
func (m *MongoStore) DeleteSong(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := m.songs().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// BackfillSongCounters sets playCount and likeCount to 0 where missing.
func (m *MongoStore) BackfillSongCounters(ctx context.Context) (int64, error) {
	var changed int64
	for _, field := range []string{"playCount", "likeCount"} {
		result, err := m.songs().UpdateMany(ctx,
			bson.M{field: bson.M{"$exists": false}},
			bson.M{"$set": bson.M{field: 0}})
		if err != nil {
			return changed, fmt.Errorf("failed to backfill %s: %w", field, err)
		}
		changed += result.ModifiedCount
		m.logger.WithFields(logrus.Fields{
			"field":    field,
			"modified": result.ModifiedCount,
		}).Info("Backfilled song counter")
	}
	return changed, nil
}

// --- playlists ---

func (d *playlistDoc) toModel() models.Playlist {
	return models.Playlist{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Description:   d.Description,
		Songs:         hexIDs(d.Songs),
		CoverPhotoURL: d.CoverPhotoURL,
		CreatedBy:     d.CreatedBy,
		Mood:          models.Mood(d.Mood),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func decodePlaylists(ctx context.Context, cursor *mongo.Cursor) ([]models.Playlist, error) {
	defer cursor.Close(ctx)

	playlists := []models.Playlist{}
	for cursor.Next(ctx) {
		var doc playlistDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		playlists = append(playlists, doc.toModel())
	}
	return playlists, cursor.Err()
}

// CreatePlaylist inserts a playlist document.
func (m *MongoStore) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	songIDs, err := objectIDs(playlist.Songs)
	if err != nil {
		return err
	}
	if playlist.CreatedBy == "" {
		playlist.CreatedBy = "admin"
	}

	ts := time.Now().UTC()
	doc := playlistDoc{
		ID:            primitive.NewObjectID(),
		Name:          playlist.Name,
		Description:   playlist.Description,
		Songs:         songIDs,
		CoverPhotoURL: playlist.CoverPhotoURL,
		CreatedBy:     playlist.CreatedBy,
		Mood:          string(playlist.Mood),
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if _, err := m.playlists().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	playlist.ID = doc.ID.Hex()
	playlist.CreatedAt = ts
	playlist.UpdatedAt = ts
	return nil
}

// GetPlaylist returns a playlist by its hex id.
func (m *MongoStore) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc playlistDoc
	if err := m.playlists().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	playlist := doc.toModel()
	return &playlist, nil
}

// ListPlaylists returns all playlists, newest first.
func (m *MongoStore) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	cursor, err := m.playlists().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return decodePlaylists(ctx, cursor)
}

// FindPlaylistsByMood matches mood as a case-insensitive literal substring.
func (m *MongoStore) FindPlaylistsByMood(ctx context.Context, mood string) ([]models.Playlist, error) {
	filter := bson.M{"mood": primitive.Regex{Pattern: regexp.QuoteMeta(mood), Options: "i"}}
	cursor, err := m.playlists().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodePlaylists(ctx, cursor)
}

// PullSongFromPlaylists removes songID from every playlist.
func (m *MongoStore) PullSongFromPlaylists(ctx context.Context, songID string) (int64, error) {
	oid, err := objectID(songID)
	if err != nil {
		return 0, err
	}
	result, err := m.playlists().UpdateMany(ctx,
		bson.M{"songs": oid},
		bson.M{"$pull": bson.M{"songs": oid}, "$set": bson.M{"updatedAt": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to pull song from playlists: %w", err)
	}
	return result.ModifiedCount, nil
}

// DeletePlaylist deletes a playlist document.
func (m *MongoStore) DeletePlaylist(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := m.playlists().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
