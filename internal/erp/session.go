package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
)

// sessionState is the disk-cached login session. The cache survives
// process restarts so short scheduler intervals do not hammer the login
// endpoint.
type sessionState struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type loginRequest struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

type loginResponse struct {
	SessionID      string `json:"SessionId"`
	SessionTimeout int    `json:"SessionTimeout"`
}

// Session manages the ERP login token: expiry check, transparent
// re-login, and a disk cache. Concurrent workers may race to refresh;
// refresh is idempotent and the last writer wins.
type Session struct {
	client    *resty.Client
	loginURL  string
	cachePath string
	creds     loginRequest
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	state sessionState
}

func NewSession(client *resty.Client, loginURL, cachePath string, companyDB, user, password string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		client:    client,
		loginURL:  loginURL,
		cachePath: cachePath,
		creds:     loginRequest{CompanyDB: companyDB, UserName: user, Password: password},
		logger:    logger,
		now:       time.Now,
	}
}

// Token returns a valid session id, logging in first when the cached one
// is missing or expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.SessionID == "" {
		s.loadCache()
	}
	if s.state.SessionID != "" && s.now().Before(s.state.ExpiresAt) {
		return s.state.SessionID, nil
	}

	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.state.SessionID, nil
}

// Invalidate drops the cached token so the next call logs in again. Used
// when the ERP rejects the session cookie.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = sessionState{}
}

// login authenticates against the ERP. A failed login is never a
// per-document outcome: without a session no document in the file can be
// judged, so the error is structural and aborts the whole file.
func (s *Session) login(ctx context.Context) error {
	var parsed loginResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(s.creds).
		SetResult(&parsed).
		Post(s.loginURL)
	if err != nil {
		return fmt.Errorf("%w: login request failed: %v", domain.ErrStructural, err)
	}
	if resp.IsError() || parsed.SessionID == "" {
		return fmt.Errorf("%w: login failed with status %d", domain.ErrStructural, resp.StatusCode())
	}

	// Expire one minute early so in-flight calls never carry a token
	// that dies mid-request.
	s.state = sessionState{
		SessionID: parsed.SessionID,
		ExpiresAt: s.now().Add(time.Duration(parsed.SessionTimeout-1) * time.Minute),
	}
	s.logger.Info("erp login refreshed", zap.Time("expiresAt", s.state.ExpiresAt))
	s.storeCache()
	return nil
}

func (s *Session) loadCache() {
	if s.cachePath == "" {
		return
	}
	raw, err := os.ReadFile(s.cachePath)
	if err != nil {
		return
	}
	var cached sessionState
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.logger.Warn("discarding unreadable session cache", zap.Error(err))
		return
	}
	s.state = cached
}

func (s *Session) storeCache() {
	if s.cachePath == "" {
		return
	}
	raw, err := json.Marshal(s.state)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.cachePath, raw, 0o600); err != nil {
		s.logger.Warn("failed to persist session cache", zap.Error(err))
	}
}
