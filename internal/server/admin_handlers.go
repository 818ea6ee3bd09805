package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"moodtune/internal/admin"
	"moodtune/pkg/models"
)

// multipartMemory is how much of an upload is buffered before spilling to
// temporary files.
const multipartMemory = 32 << 20

// handleUploadSong stores an uploaded song and cover photo and records the song.
func (s *APIServer) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondWithError(w, r, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum allowed size", err)
			return
		}
		s.respondWithError(w, r, http.StatusBadRequest, "Failed to parse upload form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	song, closeSong := formUpload(r, "songFile")
	defer closeSong()
	cover, closeCover := formUpload(r, "coverPhoto")
	defer closeCover()

	in := admin.SongInput{
		Title:    sanitizeInput(r.FormValue("title")),
		Artist:   sanitizeInput(r.FormValue("artist")),
		Mood:     sanitizeInput(r.FormValue("mood")),
		Language: sanitizeInput(r.FormValue("language")),
		Origin:   requestOrigin(r),
	}

	record, err := s.admin.IngestSong(r.Context(), in, song, cover)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{
		"msg":  "Song uploaded successfully",
		"song": record,
	})
}

// formUpload returns the named file part, or nil when it is absent.
func formUpload(r *http.Request, field string) (*admin.Upload, func()) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, func() {}
	}
	return &admin.Upload{
		Name:    filepath.Base(header.Filename),
		Content: file,
		Size:    header.Size,
	}, func() { file.Close() }
}

func (s *APIServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.admin.ListUsers(r.Context())
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	s.respondJSON(w, http.StatusOK, users)
}

func (s *APIServer) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.admin.ListSongs(r.Context())
	s.respondSongs(w, r, songs, err)
}

func (s *APIServer) handleSongAnalytics(w http.ResponseWriter, r *http.Request) {
	songs, err := s.admin.SongAnalytics(r.Context())
	s.respondSongs(w, r, songs, err)
}

func (s *APIServer) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.admin.ListPlaylists(r.Context())
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	s.respondJSON(w, http.StatusOK, playlists)
}

// handleCreatePlaylist creates an admin playlist.
func (s *APIServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in admin.PlaylistInput
	if verr := decodeJSON(w, r, &in); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if errs := validatePlaylistInput(in); len(errs) > 0 {
		s.respondWithValidationError(w, r, errs)
		return
	}

	playlist, err := s.admin.CreatePlaylist(r.Context(), in)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{
		"msg":      "Playlist created successfully",
		"playlist": playlist,
	})
}

func (s *APIServer) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.admin.DeleteSong(r.Context(), id); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, "Song deleted successfully")
}

func (s *APIServer) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.admin.DeletePlaylist(r.Context(), id); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, "Playlist deleted successfully")
}
