package server

import (
	"net/http"

	"moodtune/internal/engagement"
	"moodtune/pkg/models"
)

type likeResponse struct {
	Msg          string   `json:"msg"`
	LikedSongs   []string `json:"likedSongs"`
	NewLikeCount int64    `json:"newLikeCount"`
}

func (s *APIServer) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if verr := validateID("id", id); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return "", false
	}
	return id, true
}

// handleToggleLike likes or unlikes a song for the current user.
func (s *APIServer) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	songID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	result, err := s.tracker.ToggleLike(r.Context(), userID(r), songID)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	action := "liked"
	if result.Action == engagement.Unliked {
		action = "unliked"
	}
	s.metrics.LikesToggled.WithLabelValues(action).Inc()

	liked := result.LikedSongs
	if liked == nil {
		liked = []string{}
	}
	s.respondJSON(w, http.StatusOK, likeResponse{
		Msg:          string(result.Action),
		LikedSongs:   liked,
		NewLikeCount: result.NewLikeCount,
	})
}

// handleLogPlay counts one play of a song.
func (s *APIServer) handleLogPlay(w http.ResponseWriter, r *http.Request) {
	songID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.tracker.LogPlay(r.Context(), userID(r), songID); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.metrics.PlaysLogged.Inc()
	s.respondMessage(w, http.StatusOK, "Play logged successfully")
}

func (s *APIServer) handleLikedSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalog.Liked(r.Context(), userID(r))
	s.respondSongs(w, r, songs, err)
}

func (s *APIServer) handleSearchSongs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if verr := validateSearchQuery(q); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	songs, err := s.catalog.Search(r.Context(), sanitizeInput(q))
	s.respondSongs(w, r, songs, err)
}

func (s *APIServer) handleRecentSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalog.Recent(r.Context())
	s.respondSongs(w, r, songs, err)
}

func (s *APIServer) handleRandomSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalog.Random(r.Context())
	s.respondSongs(w, r, songs, err)
}

// handleFavoriteSongs returns the user's most played songs. An empty list
// tells the client to fall back to random picks.
func (s *APIServer) handleFavoriteSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.tracker.Favorites(r.Context(), userID(r))
	s.respondSongs(w, r, songs, err)
}

func (s *APIServer) respondSongs(w http.ResponseWriter, r *http.Request, songs []models.Song, err error) {
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if songs == nil {
		songs = []models.Song{}
	}
	s.respondJSON(w, http.StatusOK, songs)
}
