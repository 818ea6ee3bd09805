package models

import "time"

// Song represents an uploaded track in the catalog
type Song struct {
	ID            string    `json:"_id"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	SongURL       string    `json:"songUrl"`
	CoverPhotoURL string    `json:"coverPhotoUrl"`
	Mood          string    `json:"mood"`
	Language      string    `json:"language"`
	Duration      int       `json:"duration"` // in seconds, 0 when unknown
	PlayCount     int64     `json:"playCount"`
	LikeCount     int64     `json:"likeCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SongOrder selects the sort order for song listings
type SongOrder int

const (
	// OrderNewest sorts by creation time, newest first.
	OrderNewest SongOrder = iota
	// OrderMostPlayed sorts by global play count, highest first.
	OrderMostPlayed
)

// IndexSongs maps songs by ID for order-restoring lookups.
func IndexSongs(songs []Song) map[string]Song {
	index := make(map[string]Song, len(songs))
	for _, s := range songs {
		index[s.ID] = s
	}
	return index
}

// OrderSongs returns the songs for ids in the order of ids, skipping ids
// that have no matching song.
func OrderSongs(ids []string, songs []Song) []Song {
	index := IndexSongs(songs)
	ordered := make([]Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := index[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered
}
