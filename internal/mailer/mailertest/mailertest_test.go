package mailertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"moodtune/internal/mailer"
)

var _ mailer.Mailer = (*Capture)(nil)

func TestCapture(t *testing.T) {
	m := &Capture{}
	ctx := context.Background()

	m.SendOTP(ctx, "a@example.com", "111111", time.Minute)
	m.SendOTP(ctx, "b@example.com", "222222", time.Minute)
	m.SendOTP(ctx, "a@example.com", "333333", time.Minute)

	if otp, ok := m.Last("a@example.com"); !ok || otp != "333333" {
		t.Errorf("Expected latest code 333333, got %q (%v)", otp, ok)
	}
	if _, ok := m.Last("c@example.com"); ok {
		t.Error("Expected no code for unknown address")
	}
	if m.Count() != 3 {
		t.Errorf("Expected 3 messages, got %d", m.Count())
	}

	m.Err = errors.New("smtp down")
	if err := m.SendOTP(ctx, "a@example.com", "444444", time.Minute); err == nil {
		t.Error("Expected configured error")
	}
}
