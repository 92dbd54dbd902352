package linkedin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const stateTTL = 15 * time.Minute

// OAuth handles the LinkedIn authorization-code flow for bot users. Each
// pending authorization is keyed by a random state value bound to the chat
// that started it.
type OAuth struct {
	config *oauth2.Config

	mu      sync.Mutex
	pending map[string]pendingAuth
}

type pendingAuth struct {
	chatID    string
	createdAt time.Time
}

// NewOAuth builds the flow from the application credentials.
func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "w_member_social"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
				TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
			},
		},
		pending: make(map[string]pendingAuth),
	}
}

// AuthURL starts an authorization for a chat and returns the URL the user
// must open in a browser.
func (o *OAuth) AuthURL(chatID string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := hex.EncodeToString(buf)

	o.mu.Lock()
	o.prune(time.Now())
	o.pending[state] = pendingAuth{chatID: chatID, createdAt: time.Now()}
	o.mu.Unlock()

	return o.config.AuthCodeURL(state), nil
}

// Exchange redeems an authorization code for a token and returns the chat
// that initiated the flow. The state is single-use.
func (o *OAuth) Exchange(ctx context.Context, state, code string) (string, *oauth2.Token, error) {
	o.mu.Lock()
	auth, ok := o.pending[state]
	if ok {
		delete(o.pending, state)
	}
	o.mu.Unlock()

	if !ok || time.Since(auth.createdAt) > stateTTL {
		return "", nil, fmt.Errorf("unknown or expired authorization state")
	}

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("exchange code: %w", err)
	}
	return auth.chatID, token, nil
}

// ExchangeCode redeems a code against the chat's most recent pending
// authorization. Fallback for users whose browser redirect could not reach
// the callback server.
func (o *OAuth) ExchangeCode(ctx context.Context, chatID, code string) (*oauth2.Token, error) {
	o.mu.Lock()
	var (
		found   string
		foundAt time.Time
	)
	for state, auth := range o.pending {
		if auth.chatID == chatID && auth.createdAt.After(foundAt) {
			found, foundAt = state, auth.createdAt
		}
	}
	if found != "" {
		delete(o.pending, found)
	}
	o.mu.Unlock()

	if found == "" || time.Since(foundAt) > stateTTL {
		return nil, fmt.Errorf("no pending authorization; start again with /auth")
	}

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return token, nil
}

// prune drops expired states. Caller holds the lock.
func (o *OAuth) prune(now time.Time) {
	for state, auth := range o.pending {
		if now.Sub(auth.createdAt) > stateTTL {
			delete(o.pending, state)
		}
	}
}
