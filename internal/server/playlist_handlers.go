package server

import (
	"net/http"
)

// handlePlaylistsByMood returns every playlist tagged with the mood in the
// path, songs expanded.
func (s *APIServer) handlePlaylistsByMood(w http.ResponseWriter, r *http.Request) {
	mood := r.PathValue("mood")
	if verr := validateMoodQuery(mood); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	playlists, err := s.catalog.PlaylistsByMood(r.Context(), mood)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, playlists)
}
