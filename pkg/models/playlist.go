package models

import "time"

// Playlist represents an admin-curated playlist tagged with a mood
type Playlist struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Songs         []string  `json:"songs"`
	CoverPhotoURL string    `json:"coverPhotoUrl,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	Mood          Mood      `json:"mood"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PopulatedPlaylist is a playlist whose song references are expanded into
// full song records.
type PopulatedPlaylist struct {
	Playlist
	Songs []Song `json:"songs"`
}
