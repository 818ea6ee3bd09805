package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"moodtune/internal/admin"
	"moodtune/internal/auth"
	"moodtune/internal/catalog"
	"moodtune/internal/database"
	"moodtune/internal/engagement"

	"github.com/sirupsen/logrus"
)

const (
	msgServerError = "Server Error"
	maxJSONBody    = 1 << 20
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Msg    string            `json:"msg"`
	Code   int               `json:"code"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func (s *APIServer) respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("Failed to write JSON response")
	}
}

// respondMessage sends {"msg": ...} with statusCode.
func (s *APIServer) respondMessage(w http.ResponseWriter, statusCode int, msg string) {
	s.respondJSON(w, statusCode, map[string]string{"msg": msg})
}

// respondWithValidationError sends a structured validation error response
func (s *APIServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errs []ValidationError) {
	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errs,
	}).Warn("Validation failed")

	s.respondJSON(w, http.StatusBadRequest, errorResponse{
		Msg:    errs[0].Message,
		Code:   http.StatusBadRequest,
		Errors: errs,
	})
}

// respondWithError sends a structured error response
func (s *APIServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := s.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	s.respondJSON(w, statusCode, errorResponse{Msg: message, Code: statusCode})
}

// respondWithServiceError maps a domain error onto its HTTP status.
func (s *APIServer) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, message := classifyError(err)
	s.respondWithError(w, r, statusCode, message, err)
}

func classifyError(err error) (int, string) {
	var inputErr *admin.InputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Msg

	case errors.Is(err, auth.ErrMailDelivery):
		return http.StatusInternalServerError, auth.ErrMailDelivery.Error()

	case errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrInvalidOTP),
		errors.Is(err, auth.ErrAlreadyVerified),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUseGoogle),
		errors.Is(err, auth.ErrNotVerified),
		errors.Is(err, auth.ErrUnverifiedIdentity),
		errors.Is(err, catalog.ErrEmptyQuery),
		errors.Is(err, admin.ErrMissingAssets):
		return http.StatusBadRequest, rootMessage(err)

	case errors.Is(err, database.ErrInvalidID):
		return http.StatusBadRequest, "Invalid id"

	case errors.Is(err, catalog.ErrNoPlaylists),
		errors.Is(err, catalog.ErrUserNotFound),
		errors.Is(err, engagement.ErrSongNotFound),
		errors.Is(err, engagement.ErrUserNotFound),
		errors.Is(err, admin.ErrSongNotFound),
		errors.Is(err, admin.ErrPlaylistNotFound):
		return http.StatusNotFound, rootMessage(err)

	case errors.Is(err, auth.ErrGoogleDisabled):
		return http.StatusNotFound, auth.ErrGoogleDisabled.Error()

	default:
		return http.StatusInternalServerError, msgServerError
	}
}

// rootMessage returns the innermost error text, which for sentinel errors
// is the client-facing message.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) *ValidationError {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{
			Field:   "body",
			Message: "Invalid JSON body",
			Code:    "INVALID_JSON",
		}
	}
	return nil
}

// validateID checks an id taken from the URL path
func validateID(field, id string) *ValidationError {
	if id == "" {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Code:    "MISSING_ID",
		}
	}

	if len(id) > 64 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is too long", field),
			Code:    "ID_TOO_LONG",
		}
	}

	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s contains invalid characters", field),
				Code:    "INVALID_ID_CHARACTERS",
			}
		}
	}

	return nil
}

// validateSearchQuery validates search query parameters
func validateSearchQuery(query string) *ValidationError {
	if len(query) > 1000 {
		return &ValidationError{
			Field:   "q",
			Message: "Search query too long (max 1000 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		}
	}

	if strings.Contains(query, "\x00") {
		return &ValidationError{
			Field:   "q",
			Message: "Search query contains invalid characters",
			Code:    "INVALID_SEARCH_CHARACTERS",
		}
	}

	return nil
}

// validateMoodQuery bounds the free-text mood used for playlist lookup.
func validateMoodQuery(mood string) *ValidationError {
	if len(mood) > 64 || strings.ContainsAny(mood, "\x00\n\r") {
		return &ValidationError{
			Field:   "mood",
			Message: "Invalid mood",
			Code:    "INVALID_MOOD",
		}
	}
	return nil
}

// validatePlaylistInput validates the text fields of a new playlist. Presence
// checks live in the admin service.
func validatePlaylistInput(in admin.PlaylistInput) []ValidationError {
	var errs []ValidationError

	if len(in.Name) > 255 {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "Playlist name too long (max 255 characters)",
			Code:    "PLAYLIST_NAME_TOO_LONG",
		})
	}
	if strings.ContainsAny(in.Name, "\x00\n\r") {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "Playlist name contains invalid characters",
			Code:    "INVALID_PLAYLIST_NAME_CHARACTERS",
		})
	}
	if len(in.Description) > 1000 {
		errs = append(errs, ValidationError{
			Field:   "description",
			Message: "Playlist description too long (max 1000 characters)",
			Code:    "PLAYLIST_DESCRIPTION_TOO_LONG",
		})
	}
	for _, id := range in.Songs {
		if verr := validateID("songs", strings.TrimSpace(id)); verr != nil && verr.Code != "MISSING_ID" {
			errs = append(errs, *verr)
			break
		}
	}

	return errs
}

// sanitizeInput strips NUL bytes and surrounding whitespace.
func sanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
