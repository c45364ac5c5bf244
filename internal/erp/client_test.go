package erp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
)

func newTestSession(t *testing.T, loginURL string) *Session {
	t.Helper()
	cachePath := filepath.Join(t.TempDir(), "session.json")
	return NewSession(resty.New(), loginURL, cachePath, "SBO_TEST", "integration", "secret", zap.NewNop())
}

func loginHandler(sessionID string, logins *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"SessionId":      sessionID,
			"SessionTimeout": 30,
		})
	}
}

func TestClientSubmitReturnsDocEntry(t *testing.T) {
	t.Parallel()

	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/Login", loginHandler("sess-1", &logins))
	mux.HandleFunc("/InventoryGenExits", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Cookie"); got != "B1SESSION=sess-1" {
			t.Errorf("cookie = %q, want session", got)
		}
		var payload domain.Payload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Series != 77 {
			t.Errorf("series = %d, want 77", payload.Series)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"DocEntry": 11532})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := newTestSession(t, srv.URL+"/Login")
	client, err := NewClient(srv.URL, session, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	docEntry, err := client.Submit(context.Background(), "InventoryGenExits", &domain.Payload{Series: 77})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if docEntry != 11532 {
		t.Fatalf("docEntry = %d, want 11532", docEntry)
	}
}

func TestClientSubmitClassifiesRejection(t *testing.T) {
	t.Parallel()

	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/Login", loginHandler("sess-1", &logins))
	mux.HandleFunc("/InventoryGenExits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Please specify a valid serial/lot number, [line: 2]"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := newTestSession(t, srv.URL+"/Login")
	client, err := NewClient(srv.URL, session, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Submit(context.Background(), "InventoryGenExits", &domain.Payload{})
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) {
		t.Fatalf("error = %v, want *SubmitError", err)
	}
	if submitErr.Class != domain.ClassUpstream {
		t.Fatalf("class = %v, want UPSTREAM", submitErr.Class)
	}
	// Commas and position markers are stripped for the status text.
	if got := submitErr.StatusText(); got != "[ERP] Please specify a valid serial/lot number." {
		t.Fatalf("status text = %q", got)
	}
	if !LotMismatch(submitErr.StatusText()) {
		t.Fatal("lot rejection should be reallocation-eligible")
	}
}

func TestClientLoginFailureIsStructural(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/Login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := newTestSession(t, srv.URL+"/Login")
	client, err := NewClient(srv.URL, session, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Submit(context.Background(), "InventoryGenExits", &domain.Payload{})
	if !errors.Is(err, domain.ErrStructural) {
		t.Fatalf("error = %v, want structural login failure", err)
	}
	var submitErr *SubmitError
	if errors.As(err, &submitErr) {
		t.Fatalf("error = %v, a failed login must not classify as a per-document outcome", err)
	}
}

func TestClientRefreshesStaleSession(t *testing.T) {
	t.Parallel()

	var logins atomic.Int32
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/Login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"SessionId":      "sess-" + string(rune('0'+logins.Load())),
			"SessionTimeout": 30,
		})
	})
	mux.HandleFunc("/DeliveryNotes", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"DocEntry": 42})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := newTestSession(t, srv.URL+"/Login")
	client, err := NewClient(srv.URL, session, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	docEntry, err := client.Submit(context.Background(), "DeliveryNotes", &domain.Payload{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if docEntry != 42 {
		t.Fatalf("docEntry = %d, want 42 after replay", docEntry)
	}
	if logins.Load() != 2 {
		t.Fatalf("logins = %d, want re-login after 401", logins.Load())
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want one replay", calls.Load())
	}
}

func TestSessionTokenCachedUntilExpiry(t *testing.T) {
	t.Parallel()

	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/Login", loginHandler("sess-9", &logins))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := newTestSession(t, srv.URL+"/Login")
	current := time.Date(2024, 2, 20, 8, 0, 0, 0, time.UTC)
	session.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		token, err := session.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "sess-9" {
			t.Fatalf("token = %q", token)
		}
	}
	if logins.Load() != 1 {
		t.Fatalf("logins = %d, want cached token reused", logins.Load())
	}

	// A 30 minute session expires one minute early.
	current = current.Add(29 * time.Minute)
	if _, err := session.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if logins.Load() != 2 {
		t.Fatalf("logins = %d, want refresh after expiry", logins.Load())
	}
}

func TestSessionCacheSurvivesRestart(t *testing.T) {
	t.Parallel()

	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/Login", loginHandler("sess-5", &logins))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cachePath := filepath.Join(t.TempDir(), "session.json")
	first := NewSession(resty.New(), srv.URL+"/Login", cachePath, "SBO_TEST", "integration", "secret", zap.NewNop())
	if _, err := first.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	second := NewSession(resty.New(), srv.URL+"/Login", cachePath, "SBO_TEST", "integration", "secret", zap.NewNop())
	token, err := second.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "sess-5" {
		t.Fatalf("token = %q, want cached token across restart", token)
	}
	if logins.Load() != 1 {
		t.Fatalf("logins = %d, want no second login", logins.Load())
	}
}

func TestShortMessageCanonicalPhrases(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{"10000107 - specify a valid serial/lot number for item", "Invalid lot."},
		{"The quantity falls into negative inventory for item X", "Negative inventory."},
		{"something unrecognized", "something unrecognized"},
	}
	for _, tc := range testCases {
		if got := ShortMessage(tc.in); got != tc.want {
			t.Errorf("ShortMessage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
