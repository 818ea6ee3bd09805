package server

import (
	"net/http"

	"moodtune/pkg/models"
)

// ConfigResponse represents the public configuration sent to the frontend
type ConfigResponse struct {
	Moods            []models.Mood `json:"moods"`
	GoogleEnabled    bool          `json:"googleEnabled"`
	TokenHeader      string        `json:"tokenHeader"`
	MaxUploadSize    int64         `json:"maxUploadSizeMb"`
	SupportedFormats []string      `json:"supportedFormats"`
}

// handleGetConfig returns public configuration settings for the frontend
func (s *APIServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, ConfigResponse{
		Moods:            models.Moods,
		GoogleEnabled:    s.auth.GoogleEnabled(),
		TokenHeader:      s.config.Auth.TokenHeader,
		MaxUploadSize:    s.config.Storage.MaxUploadSize,
		SupportedFormats: s.extractor.SupportedFormats(),
	})
}
