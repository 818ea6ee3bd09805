package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moodtune/internal/auth"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	oauthStateCookie = "moodtune_oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

func (s *APIServer) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if verr := decodeJSON(w, r, &req); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return req, false
	}
	req.Name = sanitizeInput(req.Name)
	req.Email = sanitizeInput(req.Email)
	req.OTP = sanitizeInput(req.OTP)
	return req, true
}

// handleRegister creates an unverified account and mails its OTP.
func (s *APIServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	err := s.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil && !errors.Is(err, auth.ErrMailDelivery) {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.metrics.Registrations.Inc()
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.metrics.OTPsSent.Inc()
	s.respondMessage(w, http.StatusCreated, "Registration successful! Please check your email for an OTP to verify your account.")
}

// handleVerifyOTP marks an account verified.
func (s *APIServer) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := s.auth.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, "Email verified successfully! You can now log in.")
}

// handleResendOTP replaces the pending OTP of an unverified account.
func (s *APIServer) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := s.auth.ResendOTP(r.Context(), req.Email); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.metrics.OTPsSent.Inc()
	s.respondMessage(w, http.StatusOK, "A new OTP has been sent to your email.")
}

// handleLogin exchanges credentials for a bearer token.
func (s *APIServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.metrics.Logins.WithLabelValues("password", "failure").Inc()
		s.respondWithServiceError(w, r, err)
		return
	}

	s.metrics.Logins.WithLabelValues("password", "success").Inc()
	s.respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleGoogleLogin redirects to the Google consent page. The state value
// is echoed back on the callback and checked against a cookie.
func (s *APIServer) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	consentURL, err := s.auth.GoogleAuthURL(state)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// handleGoogleCallback completes Google sign-in and hands the token to the
// client through a redirect.
func (s *APIServer) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
	})

	failureURL := strings.TrimSuffix(s.config.Server.ClientURL, "/") + "/login"

	cookie, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		s.metrics.Logins.WithLabelValues("google", "failure").Inc()
		s.logger.WithField("remote_addr", r.RemoteAddr).Warn("OAuth callback with missing or mismatched state")
		http.Redirect(w, r, failureURL, http.StatusFound)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.metrics.Logins.WithLabelValues("google", "failure").Inc()
		s.logger.WithField("error", r.URL.Query().Get("error")).Warn("OAuth callback without code")
		http.Redirect(w, r, failureURL, http.StatusFound)
		return
	}

	token, err := s.auth.GoogleLogin(r.Context(), code)
	if err != nil {
		s.metrics.Logins.WithLabelValues("google", "failure").Inc()
		s.logger.WithError(err).Warn("Google sign-in failed")
		http.Redirect(w, r, failureURL, http.StatusFound)
		return
	}

	s.metrics.Logins.WithLabelValues("google", "success").Inc()
	http.Redirect(w, r, s.config.Server.ClientURL+"?token="+url.QueryEscape(token), http.StatusFound)
}

// handleCurrentUser returns the authenticated account without secrets.
func (s *APIServer) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.CurrentUser(r.Context(), userID(r))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			s.respondWithError(w, r, http.StatusNotFound, "User not found", err)
			return
		}
		s.respondWithServiceError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID}).Debug("Served current user")
	s.respondJSON(w, http.StatusOK, user)
}
