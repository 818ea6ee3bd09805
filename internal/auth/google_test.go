package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func newGoogleTestServer(t *testing.T, profile string) *GoogleProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(profile))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	g := NewGoogleProvider("client", "secret", "http://localhost/callback")
	g.config.Endpoint = oauth2.Endpoint{AuthURL: ts.URL + "/auth", TokenURL: ts.URL + "/token"}
	g.userInfoURL = ts.URL + "/userinfo"
	return g
}

func TestGoogleProviderExchange(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		wantErr error
		wantID  string
	}{
		{"verified", `{"sub":"g-1","email":"a@example.com","email_verified":true,"name":"A"}`, nil, "g-1"},
		{"unverified", `{"sub":"g-2","email":"b@example.com","email_verified":false}`, ErrUnverifiedIdentity, ""},
		{"claim missing", `{"sub":"g-3","email":"c@example.com"}`, ErrUnverifiedIdentity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGoogleTestServer(t, tt.profile)
			identity, err := g.Exchange(context.Background(), "code")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Exchange failed: %v", err)
			}
			if identity.ID != tt.wantID || !identity.EmailVerified {
				t.Errorf("Unexpected identity: %+v", identity)
			}
		})
	}
}
