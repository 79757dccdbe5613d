package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"invoice-sync-service/internal/domain"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	tokenPath      = "/identity/v1/oauth2/token"
	refreshTimeout = 30 * time.Second
)

type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scopes       []string
}

// TokenManager owns the marketplace bearer token for the lifetime of the process.
type TokenManager struct {
	httpClient *http.Client
	tokenURL   string
	creds      Credentials
	now        func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	refreshGroup singleflight.Group
}

func NewTokenManager(httpClient *http.Client, baseURL string, creds Credentials) *TokenManager {
	return &TokenManager{
		httpClient: httpClient,
		tokenURL:   strings.TrimRight(baseURL, "/") + tokenPath,
		creds:      creds,
		now:        time.Now,
	}
}

func (m *TokenManager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" || !m.now().Before(m.expiresAt) {
		return "", false
	}
	return m.token, true
}

// EnsureValidToken returns the cached token, refreshing it first when it is absent or expired.
// Concurrent callers share a single refresh exchange.
func (m *TokenManager) EnsureValidToken(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	// The shared refresh must not die with whichever caller started it.
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		if token, ok := m.cached(); ok {
			return token, nil
		}
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(refreshCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call refreshes it.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiresAt = time.Time{}
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.creds.RefreshToken)
	form.Set("scope", strings.Join(m.creds.Scopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.creds.ClientID, m.creds.ClientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("Error when trying to obtain access token from refresh token")
		return "", fmt.Errorf("%w: token refresh: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Warn("Could not obtain access token from refresh token")
		return "", fmt.Errorf("%w: token endpoint returned %d", domain.ErrAuth, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", domain.ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: token response has no access_token", domain.ErrAuth)
	}

	m.mu.Lock()
	m.token = tr.AccessToken
	m.expiresAt = m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	m.mu.Unlock()

	log.WithField("expires_in", tr.ExpiresIn).Info("Successfully obtained access token from refresh token")
	return tr.AccessToken, nil
}
