package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"moodtune/internal/database"
	"moodtune/internal/mailer"
	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

// Options configures a Service.
type Options struct {
	JWTSecret  string
	TokenTTL   time.Duration
	OTPTTL     time.Duration
	BcryptCost int
	// Google is nil when Google sign-in is not configured.
	Google IdentityProvider
}

// Service provides authentication functionality
type Service struct {
	store      database.Store
	mailer     mailer.Mailer
	tokens     *TokenIssuer
	google     IdentityProvider
	otpTTL     time.Duration
	bcryptCost int
	now        func() time.Time
	logger     *logrus.Logger
}

// NewService creates a new authentication service
func NewService(store database.Store, m mailer.Mailer, opts Options, logger *logrus.Logger) *Service {
	return &Service{
		store:      store,
		mailer:     m,
		tokens:     NewTokenIssuer(opts.JWTSecret, opts.TokenTTL),
		google:     opts.Google,
		otpTTL:     opts.OTPTTL,
		bcryptCost: opts.BcryptCost,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock replaces the time source for OTP and token expiry.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.tokens.now = now
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and mails it a one-time code. When
// delivery fails the account is kept and ErrMailDelivery is returned; the
// user can request a new code with ResendOTP.
func (s *Service) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrMissingFields
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		OTP:          otp,
		OTPExpires:   s.now().Add(s.otpTTL),
		Role:         models.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return ErrEmailTaken
		}
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   email,
	}).Info("User registered")

	return s.deliverOTP(ctx, email, otp)
}

// ResendOTP issues a fresh code for an unverified account.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrMissingFields
	}

	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}
	if err := s.store.SetUserOTP(ctx, user.ID, otp, s.now().Add(s.otpTTL)); err != nil {
		return err
	}

	return s.deliverOTP(ctx, email, otp)
}

func (s *Service) deliverOTP(ctx context.Context, email, otp string) error {
	if err := s.mailer.SendOTP(ctx, email, otp, s.otpTTL); err != nil {
		s.logger.WithError(err).WithField("email", email).Error("OTP delivery failed")
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

// VerifyOTP marks the account verified when otp matches and has not expired.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) error {
	email = NormalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return ErrMissingFields
	}

	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.OTP == "" ||
		subtle.ConstantTimeCompare([]byte(user.OTP), []byte(otp)) != 1 ||
		!s.now().Before(user.OTPExpires) {
		return ErrInvalidOTP
	}

	if err := s.store.MarkUserVerified(ctx, user.ID); err != nil {
		return err
	}

	s.logger.WithField("user_id", user.ID).Info("Email verified")
	return nil
}

// Login checks credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingFields
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if user.PasswordHash == "" {
		return "", ErrUseGoogle
	}
	if !user.IsVerified {
		return "", ErrNotVerified
	}
	if !checkPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")
	return s.tokens.Issue(user.ID)
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *Service) GoogleEnabled() bool {
	return s.google != nil
}

// GoogleAuthURL returns the consent page URL for state.
func (s *Service) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleLogin completes the authorization-code flow and returns a token.
func (s *Service) GoogleLogin(ctx context.Context, code string) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	return s.OAuthLogin(ctx, *identity)
}

// OAuthLogin finds or creates the account for a federated identity. An
// existing password account with the same email is linked rather than
// duplicated. Federated accounts are always verified.
//
// Linking an unverified account drops its password: nobody proved ownership
// of the address before the provider did.
func (s *Service) OAuthLogin(ctx context.Context, identity Identity) (string, error) {
	email := NormalizeEmail(identity.Email)
	if identity.ID == "" || email == "" {
		return "", ErrInvalidCredentials
	}
	if !identity.EmailVerified {
		return "", ErrUnverifiedIdentity
	}

	user, err := s.store.GetUserByGoogleID(ctx, identity.ID)
	if err == nil {
		return s.tokens.Issue(user.ID)
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}

	user, err = s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		dropPassword := !user.IsVerified
		if err := s.store.LinkGoogleID(ctx, user.ID, identity.ID, dropPassword); err != nil {
			return "", err
		}
		s.logger.WithFields(logrus.Fields{
			"user_id":          user.ID,
			"password_cleared": dropPassword,
		}).Info("Linked Google account")
		return s.tokens.Issue(user.ID)
	case !errors.Is(err, database.ErrNotFound):
		return "", err
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = email
	}
	user = &models.User{
		Name:       name,
		Email:      email,
		GoogleID:   identity.ID,
		IsVerified: true,
		Role:       models.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   email,
	}).Info("User registered via Google")
	return s.tokens.Issue(user.ID)
}

// ParseToken validates a bearer token and returns its user id.
func (s *Service) ParseToken(token string) (string, error) {
	return s.tokens.Parse(token)
}

// CurrentUser returns the account for id.
func (s *Service) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrInvalidID) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Promote grants the admin role to the account registered with email.
func (s *Service) Promote(ctx context.Context, email string) (*models.User, error) {
	user, err := s.lookupByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.store.SetUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return nil, err
	}
	user.Role = models.RoleAdmin
	s.logger.WithField("user_id", user.ID).Info("User promoted to admin")
	return user, nil
}

func (s *Service) lookupByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
