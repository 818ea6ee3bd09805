// Package mailertest provides an in-memory mailer.Mailer for tests.
package mailertest

import (
	"context"
	"sync"
	"time"
)

// Message is a captured OTP delivery.
type Message struct {
	To  string
	OTP string
}

// Capture records deliveries in memory. Err, when set, is returned from
// every send.
type Capture struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// SendOTP records the message.
func (m *Capture) SendOTP(_ context.Context, to, otp string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, Message{To: to, OTP: otp})
	return nil
}

// Last returns the most recent code sent to addr.
func (m *Capture) Last(addr string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].To == addr {
			return m.messages[i].OTP, true
		}
	}
	return "", false
}

// Count returns the number of captured messages.
func (m *Capture) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
