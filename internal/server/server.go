package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"moodtune/internal/admin"
	"moodtune/internal/auth"
	"moodtune/internal/cache"
	"moodtune/internal/catalog"
	"moodtune/internal/config"
	"moodtune/internal/database"
	"moodtune/internal/engagement"
	"moodtune/internal/mailer"
	"moodtune/internal/metadata"
	"moodtune/internal/metrics"
	"moodtune/internal/ngrok"
	"moodtune/internal/storage"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Deps are the backends the API server runs on.
type Deps struct {
	Store   database.Store
	Media   storage.MediaStore
	Cache   cache.Cache
	Mailer  mailer.Mailer
	Metrics *metrics.Metrics
	// Google is nil when Google sign-in is not configured.
	Google auth.IdentityProvider
}

// APIServer serves the mood music REST API.
type APIServer struct {
	config    *config.Config
	store     database.Store
	media     storage.MediaStore
	extractor *metadata.Extractor
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	auth    *auth.Service
	tracker *engagement.Tracker
	catalog *catalog.Service
	admin   *admin.Service
	inbox   *admin.Inbox

	limiter      *ipRateLimiter
	ngrokService *ngrok.Service
	watcher      *fsnotify.Watcher
	inFlight     sync.Map
	ingestWG     sync.WaitGroup

	handler    http.Handler
	httpServer *http.Server
	baseCtx    context.Context
	cancel     context.CancelFunc
}

// NewAPIServer wires the services on top of deps.
func NewAPIServer(cfg *config.Config, deps Deps, logger *logrus.Logger) (*APIServer, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	extractor := metadata.NewExtractor(cfg.Inbox.SupportedFormats, logger)
	playlists := cache.NewPlaylistCache(deps.Cache, logger)

	authSvc := auth.NewService(deps.Store, deps.Mailer, auth.Options{
		JWTSecret:  cfg.Auth.JWTSecret,
		TokenTTL:   cfg.TokenTTL(),
		OTPTTL:     cfg.OTPTTL(),
		BcryptCost: cfg.Auth.BcryptCost,
		Google:     deps.Google,
	}, logger)

	adminSvc := admin.NewService(deps.Store, deps.Media, extractor, playlists, deps.Metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &APIServer{
		config:    cfg,
		store:     deps.Store,
		media:     deps.Media,
		extractor: extractor,
		metrics:   deps.Metrics,
		logger:    logger,
		auth:      authSvc,
		tracker:   engagement.NewTracker(deps.Store, logger),
		catalog:   catalog.NewService(deps.Store, playlists, deps.Metrics, logger),
		admin:     adminSvc,
		baseCtx:   ctx,
		cancel:    cancel,
	}

	if cfg.Auth.RateLimit > 0 {
		s.limiter = newIPRateLimiter(rate.Limit(cfg.Auth.RateLimit), cfg.Auth.RateLimitBurst)
	}

	if cfg.Inbox.Enabled {
		s.inbox = adminSvc.NewInbox(admin.InboxOptions{
			Root:            cfg.Inbox.Path,
			DefaultLanguage: cfg.Inbox.DefaultLanguage,
			DefaultCover:    cfg.Inbox.DefaultCover,
			Origin:          s.localOrigin(),
		})
		if err := s.inbox.EnsureLayout(); err != nil {
			cancel()
			return nil, err
		}
	}

	ngrokSvc, err := ngrok.NewService(&cfg.Ngrok, logger)
	if err != nil {
		logger.WithError(err).Warn("Ngrok service not available")
	}
	s.ngrokService = ngrokSvc

	s.handler = s.setupRoutes()
	return s, nil
}

// Auth exposes the authentication service for maintenance commands.
func (s *APIServer) Auth() *auth.Service {
	return s.auth
}

// Admin exposes the admin service for maintenance commands.
func (s *APIServer) Admin() *admin.Service {
	return s.admin
}

// Handler returns the full middleware-wrapped router.
func (s *APIServer) Handler() http.Handler {
	return s.handler
}

func (s *APIServer) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", s.rateLimited(s.handleRegister))
	mux.Handle("POST /api/auth/verify-otp", s.rateLimited(s.handleVerifyOTP))
	mux.Handle("POST /api/auth/resend-otp", s.rateLimited(s.handleResendOTP))
	mux.Handle("POST /api/auth/login", s.rateLimited(s.handleLogin))
	mux.HandleFunc("GET /api/auth/google", s.handleGoogleLogin)
	mux.HandleFunc("GET /api/auth/google/callback", s.handleGoogleCallback)
	mux.Handle("GET /api/auth/user", s.requireUser(s.handleCurrentUser))

	mux.Handle("GET /api/playlists/mood/{mood}", s.requireUser(s.handlePlaylistsByMood))

	mux.Handle("PUT /api/songs/{id}/like", s.requireUser(s.handleToggleLike))
	mux.Handle("POST /api/songs/{id}/play", s.requireUser(s.handleLogPlay))
	mux.Handle("GET /api/songs/liked", s.requireUser(s.handleLikedSongs))
	mux.Handle("GET /api/songs/search", s.requireUser(s.handleSearchSongs))
	mux.Handle("GET /api/songs/recent", s.requireUser(s.handleRecentSongs))
	mux.Handle("GET /api/songs/random", s.requireUser(s.handleRandomSongs))
	mux.Handle("GET /api/songs/favorites", s.requireUser(s.handleFavoriteSongs))

	mux.Handle("POST /api/admin/upload-song", s.requireAdmin(s.handleUploadSong))
	mux.Handle("GET /api/admin/users", s.requireAdmin(s.handleListUsers))
	mux.Handle("GET /api/admin/songs", s.requireAdmin(s.handleListSongs))
	mux.Handle("DELETE /api/admin/songs/{id}", s.requireAdmin(s.handleDeleteSong))
	mux.Handle("GET /api/admin/playlists", s.requireAdmin(s.handleListPlaylists))
	mux.Handle("POST /api/admin/playlists", s.requireAdmin(s.handleCreatePlaylist))
	mux.Handle("POST /api/admin/create-playlist", s.requireAdmin(s.handleCreatePlaylist))
	mux.Handle("DELETE /api/admin/playlists/{id}", s.requireAdmin(s.handleDeletePlaylist))
	mux.Handle("GET /api/admin/analytics/songs", s.requireAdmin(s.handleSongAnalytics))

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	if s.config.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Path, s.metrics.Handler())
	}
	if local, ok := s.media.(*storage.LocalStore); ok {
		mux.Handle("GET "+storage.URLPrefix, local.Handler())
	}
	mux.HandleFunc("GET /", s.handleHome)

	var h http.Handler = mux
	h = s.corsMiddleware(h)
	h = s.metricsMiddleware(h)
	h = s.requestLoggingMiddleware(h)
	h = s.panicRecoveryMiddleware(h)
	return h
}

// ScanInbox ingests files already waiting in the inbox.
func (s *APIServer) ScanInbox() error {
	if s.inbox == nil || !s.config.Inbox.ScanOnStartup {
		return nil
	}
	_, err := s.inbox.Scan(s.baseCtx)
	return err
}

// Start serves HTTP until Shutdown is called.
func (s *APIServer) Start() error {
	if s.inbox != nil {
		if err := s.startInboxWatcher(); err != nil {
			s.logger.WithError(err).Warn("Could not start inbox watcher")
		}
	}

	s.httpServer = &http.Server{
		Addr:         s.config.GetAddress(),
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	if s.ngrokService != nil {
		upstream := "http://" + net.JoinHostPort("localhost", s.config.Server.Port)
		if err := s.ngrokService.StartTunnel(s.baseCtx, upstream); err != nil {
			s.logger.WithError(err).Warn("Could not start ngrok tunnel")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"address":  s.config.GetAddress(),
		"database": s.config.Database.Driver,
		"storage":  s.media.Name(),
		"cache":    s.config.Cache.Driver,
		"google":   s.auth.GoogleEnabled(),
		"inbox":    s.inbox != nil,
		"tunnel":   s.ngrokService.PublicURL(),
	}).Info("Mood music API starting")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops background work.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	s.cancel()
	s.stopInboxWatcher()
	s.waitForIngest(ctx)

	if err := s.ngrokService.Stop(); err != nil {
		s.logger.WithError(err).Warn("Failed to stop ngrok tunnel")
	}

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.logger.Info("API server shutdown complete")
	return err
}

// localOrigin is the origin inbox-ingested assets are linked under.
func (s *APIServer) localOrigin() string {
	if s.config.Storage.PublicURL != "" {
		return strings.TrimSuffix(s.config.Storage.PublicURL, "/")
	}
	host := s.config.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, s.config.Server.Port)
}

// requestOrigin rebuilds the origin the client used to reach the server.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
