package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account. Password hash and OTP never leave the server.
type User struct {
	ID           string           `json:"_id"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"`
	GoogleID     string           `json:"googleId,omitempty"`
	OTP          string           `json:"-"`
	OTPExpires   time.Time        `json:"-"`
	IsVerified   bool             `json:"isVerified"`
	Role         string           `json:"role"`
	LikedSongs   []string         `json:"likedSongs"`
	SongPlays    map[string]int64 `json:"songPlays"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasLiked reports whether songID is in the user's liked set.
func (u *User) HasLiked(songID string) bool {
	for _, id := range u.LikedSongs {
		if id == songID {
			return true
		}
	}
	return false
}
