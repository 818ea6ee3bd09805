package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moodtune/internal/database"
	"moodtune/internal/mailer/mailertest"
	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type fakeProvider struct {
	identity Identity
	err      error
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := f.identity
	return &id, nil
}

type testEnv struct {
	svc    *Service
	store  *database.SQLiteStore
	mail   *mailertest.Capture
	google *fakeProvider
	clock  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "auth.db"), 1, logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:  store,
		mail:   &mailertest.Capture{},
		google: &fakeProvider{},
		clock:  time.Now(),
	}
	env.svc = NewService(store, env.mail, Options{
		JWTSecret:  "test-secret",
		TokenTTL:   24 * time.Hour,
		OTPTTL:     10 * time.Minute,
		BcryptCost: bcrypt.MinCost,
		Google:     env.google,
	}, logger)
	env.svc.SetClock(func() time.Time { return env.clock })
	return env
}

func TestRegisterVerifyLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Register(ctx, "Alice", " Alice@Example.com ", "pw1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	otp, ok := env.mail.Last("alice@example.com")
	if !ok {
		t.Fatal("Expected an OTP to be mailed to the normalized address")
	}
	if len(otp) != 6 {
		t.Errorf("Expected 6-digit OTP, got %q", otp)
	}

	t.Run("LoginBeforeVerification", func(t *testing.T) {
		if _, err := env.svc.Login(ctx, "alice@example.com", "pw1"); !errors.Is(err, ErrNotVerified) {
			t.Errorf("Expected ErrNotVerified, got %v", err)
		}
	})

	t.Run("WrongOTP", func(t *testing.T) {
		wrong := "000000"
		if otp == wrong {
			wrong = "111111"
		}
		if err := env.svc.VerifyOTP(ctx, "alice@example.com", wrong); !errors.Is(err, ErrInvalidOTP) {
			t.Errorf("Expected ErrInvalidOTP, got %v", err)
		}
	})

	t.Run("VerifyAndLogin", func(t *testing.T) {
		if err := env.svc.VerifyOTP(ctx, "ALICE@example.com", otp); err != nil {
			t.Fatalf("VerifyOTP failed: %v", err)
		}
		token, err := env.svc.Login(ctx, "alice@example.com", "pw1")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		userID, err := env.svc.ParseToken(token)
		if err != nil {
			t.Fatalf("ParseToken failed: %v", err)
		}
		user, err := env.svc.CurrentUser(ctx, userID)
		if err != nil {
			t.Fatalf("CurrentUser failed: %v", err)
		}
		if user.Email != "alice@example.com" || !user.IsVerified {
			t.Errorf("Unexpected user: %+v", user)
		}
	})

	t.Run("OTPSingleUse", func(t *testing.T) {
		if err := env.svc.VerifyOTP(ctx, "alice@example.com", otp); !errors.Is(err, ErrInvalidOTP) {
			t.Errorf("Expected reused OTP to be rejected, got %v", err)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		if _, err := env.svc.Login(ctx, "alice@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		if _, err := env.svc.Login(ctx, "bob@example.com", "pw1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		if err := env.svc.Register(ctx, "Alice", "alice@example.com", "x"); !errors.Is(err, ErrEmailTaken) {
			t.Errorf("Expected ErrEmailTaken, got %v", err)
		}
	})
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"missing name", "", "a@example.com", "pw"},
		{"missing email", "A", "", "pw"},
		{"missing password", "A", "a@example.com", ""},
		{"malformed email", "A", "not-an-email", "pw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.Register(ctx, tt.userName, tt.email, tt.password)
			if !errors.Is(err, ErrMissingFields) {
				t.Errorf("Expected ErrMissingFields, got %v", err)
			}
		})
	}

	if env.mail.Count() != 0 {
		t.Errorf("Expected no mail for invalid registrations, got %d", env.mail.Count())
	}
}

func TestOTPExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Register(ctx, "Carol", "carol@example.com", "pw"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	otp, _ := env.mail.Last("carol@example.com")

	env.clock = env.clock.Add(11 * time.Minute)
	if err := env.svc.VerifyOTP(ctx, "carol@example.com", otp); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("Expected expired OTP to be rejected, got %v", err)
	}

	if err := env.svc.ResendOTP(ctx, "carol@example.com"); err != nil {
		t.Fatalf("ResendOTP failed: %v", err)
	}
	fresh, _ := env.mail.Last("carol@example.com")
	if err := env.svc.VerifyOTP(ctx, "carol@example.com", fresh); err != nil {
		t.Errorf("Expected fresh OTP to verify, got %v", err)
	}

	if err := env.svc.ResendOTP(ctx, "carol@example.com"); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("Expected ErrAlreadyVerified, got %v", err)
	}
	if err := env.svc.VerifyOTP(ctx, "nobody@example.com", "123456"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestMailFailureKeepsAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mail.Err = errors.New("smtp down")

	err := env.svc.Register(ctx, "Dan", "dan@example.com", "pw")
	if !errors.Is(err, ErrMailDelivery) {
		t.Fatalf("Expected ErrMailDelivery, got %v", err)
	}
	if _, err := env.store.GetUserByEmail(ctx, "dan@example.com"); err != nil {
		t.Errorf("Expected account to persist, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.svc.tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if id, err := env.svc.ParseToken(token); err != nil || id != "user-1" {
		t.Fatalf("Expected user-1, got %q (%v)", id, err)
	}

	env.clock = env.clock.Add(25 * time.Hour)
	if _, err := env.svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected expired token to be rejected, got %v", err)
	}

	if _, err := env.svc.ParseToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected garbage token to be rejected, got %v", err)
	}

	other := NewTokenIssuer("other-secret", time.Hour)
	forged, _ := other.Issue("user-1")
	if _, err := env.svc.ParseToken(forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected token signed with another secret to be rejected, got %v", err)
	}
}

func TestOAuthLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("CreatesVerifiedAccount", func(t *testing.T) {
		env.google.identity = Identity{ID: "g-1", Email: "Erin@Example.com", Name: "Erin", EmailVerified: true}
		token, err := env.svc.GoogleLogin(ctx, "code")
		if err != nil {
			t.Fatalf("GoogleLogin failed: %v", err)
		}
		id, _ := env.svc.ParseToken(token)
		user, err := env.svc.CurrentUser(ctx, id)
		if err != nil {
			t.Fatalf("CurrentUser failed: %v", err)
		}
		if !user.IsVerified || user.GoogleID != "g-1" || user.Email != "erin@example.com" {
			t.Errorf("Unexpected user: %+v", user)
		}

		again, err := env.svc.GoogleLogin(ctx, "code")
		if err != nil {
			t.Fatalf("Second GoogleLogin failed: %v", err)
		}
		againID, _ := env.svc.ParseToken(again)
		if againID != id {
			t.Errorf("Expected same account on repeat login, got %s vs %s", againID, id)
		}
	})

	t.Run("LinkingUnverifiedAccountDropsPassword", func(t *testing.T) {
		// Someone else registered this address and never confirmed it.
		if err := env.svc.Register(ctx, "Mallory", "frank@example.com", "squatter-pw"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		existing, _ := env.store.GetUserByEmail(ctx, "frank@example.com")

		token, err := env.svc.OAuthLogin(ctx, Identity{ID: "g-2", Email: "frank@example.com", EmailVerified: true})
		if err != nil {
			t.Fatalf("OAuthLogin failed: %v", err)
		}
		id, _ := env.svc.ParseToken(token)
		if id != existing.ID {
			t.Errorf("Expected link to existing account %s, got %s", existing.ID, id)
		}
		linked, _ := env.store.GetUserByID(ctx, id)
		if !linked.IsVerified || linked.PasswordHash != "" {
			t.Errorf("Expected verified account without password, got verified=%v hash=%q", linked.IsVerified, linked.PasswordHash)
		}
		if _, err := env.svc.Login(ctx, "frank@example.com", "squatter-pw"); !errors.Is(err, ErrUseGoogle) {
			t.Errorf("Expected pre-registered password to stop working, got %v", err)
		}
	})

	t.Run("LinkingVerifiedAccountKeepsPassword", func(t *testing.T) {
		if err := env.svc.Register(ctx, "Hana", "hana@example.com", "pw"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		otp, _ := env.mail.Last("hana@example.com")
		if err := env.svc.VerifyOTP(ctx, "hana@example.com", otp); err != nil {
			t.Fatalf("VerifyOTP failed: %v", err)
		}

		if _, err := env.svc.OAuthLogin(ctx, Identity{ID: "g-3", Email: "hana@example.com", EmailVerified: true}); err != nil {
			t.Fatalf("OAuthLogin failed: %v", err)
		}
		if _, err := env.svc.Login(ctx, "hana@example.com", "pw"); err != nil {
			t.Errorf("Expected password login to keep working, got %v", err)
		}
	})

	t.Run("RejectsUnverifiedProviderEmail", func(t *testing.T) {
		if err := env.svc.Register(ctx, "Ivan", "ivan@example.com", "pw"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		_, err := env.svc.OAuthLogin(ctx, Identity{ID: "g-4", Email: "ivan@example.com"})
		if !errors.Is(err, ErrUnverifiedIdentity) {
			t.Fatalf("Expected ErrUnverifiedIdentity, got %v", err)
		}
		user, _ := env.store.GetUserByEmail(ctx, "ivan@example.com")
		if user.GoogleID != "" || user.IsVerified {
			t.Errorf("Expected account untouched, got %+v", user)
		}
	})

	t.Run("PasswordLoginOnGoogleAccount", func(t *testing.T) {
		if _, err := env.svc.Login(ctx, "erin@example.com", "anything"); !errors.Is(err, ErrUseGoogle) {
			t.Errorf("Expected ErrUseGoogle, got %v", err)
		}
	})

	t.Run("ProviderFailure", func(t *testing.T) {
		env.google.err = errors.New("denied")
		defer func() { env.google.err = nil }()
		if _, err := env.svc.GoogleLogin(ctx, "code"); err == nil {
			t.Error("Expected provider error")
		}
	})
}

func TestGoogleDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.svc.google = nil

	if env.svc.GoogleEnabled() {
		t.Error("Expected Google to be disabled")
	}
	if _, err := env.svc.GoogleAuthURL("state"); !errors.Is(err, ErrGoogleDisabled) {
		t.Errorf("Expected ErrGoogleDisabled, got %v", err)
	}
}

func TestGoogleAuthURLCarriesState(t *testing.T) {
	env := newTestEnv(t)
	url, err := env.svc.GoogleAuthURL("abc")
	if err != nil || !strings.Contains(url, "state=abc") {
		t.Errorf("Expected URL with state, got %q (%v)", url, err)
	}
}

func TestPromote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Register(ctx, "Gina", "gina@example.com", "pw"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	user, err := env.svc.Promote(ctx, "GINA@example.com")
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	stored, _ := env.store.GetUserByID(ctx, user.ID)
	if stored.Role != models.RoleAdmin {
		t.Errorf("Expected admin role, got %q", stored.Role)
	}
	if _, err := env.svc.Promote(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 100; i++ {
		otp, err := generateOTP()
		if err != nil {
			t.Fatalf("generateOTP failed: %v", err)
		}
		if len(otp) != 6 || otp[0] == '0' {
			t.Fatalf("Expected 6-digit code without leading zero, got %q", otp)
		}
	}
}
