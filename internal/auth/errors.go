package auth

import "errors"

// Errors returned by Service. Their text is sent to clients verbatim.
var (
	ErrMissingFields      = errors.New("Please enter all fields.")
	ErrEmailTaken         = errors.New("User with this email already exists.")
	ErrUserNotFound       = errors.New("User not found.")
	ErrInvalidOTP         = errors.New("Invalid or expired OTP.")
	ErrAlreadyVerified    = errors.New("Email is already verified.")
	ErrInvalidCredentials = errors.New("Invalid credentials.")
	ErrUseGoogle          = errors.New("Please log in using Google.")
	ErrNotVerified        = errors.New("Please verify your email first.")
	ErrInvalidToken       = errors.New("Token is not valid")
	ErrGoogleDisabled     = errors.New("Google sign-in is not configured")
	ErrUnverifiedIdentity = errors.New("Google account email is not verified")
	ErrMailDelivery       = errors.New("Failed to send verification email")
)
