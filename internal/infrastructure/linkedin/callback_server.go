package linkedin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"LinkedInAgent/internal/ports"
)

// CallbackServer receives the OAuth redirect, finishes the token exchange
// and stores the connection on the user's settings.
type CallbackServer struct {
	oauth  *OAuth
	store  ports.EngagementStore
	notify func(chatID string)
	logger *slog.Logger
	server *http.Server
}

// NewCallbackServer wires the server; notify is called after a successful
// connection (nil is allowed).
func NewCallbackServer(addr string, oauth *OAuth, store ports.EngagementStore, notify func(chatID string), logger *slog.Logger) *CallbackServer {
	cs := &CallbackServer{oauth: oauth, store: store, notify: notify, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", cs.handleCallback)
	cs.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return cs
}

// Run serves until the context is canceled.
func (cs *CallbackServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := cs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cs.server.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}

func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")
	code := query.Get("code")

	if errCode := query.Get("error"); errCode != "" {
		cs.logger.Warn("authorization denied", "error", errCode)
		http.Error(w, "Authorization was denied. You can close this tab.", http.StatusBadRequest)
		return
	}
	if state == "" || code == "" {
		http.Error(w, "Missing state or code.", http.StatusBadRequest)
		return
	}

	chatID, token, err := cs.oauth.Exchange(r.Context(), state, code)
	if err != nil {
		cs.logger.Error("token exchange failed", "error", err)
		http.Error(w, "Authorization failed. Start again from the bot with /auth.", http.StatusBadRequest)
		return
	}

	settings, err := cs.store.GetUserSettings(r.Context(), chatID)
	if err == nil {
		expiry := token.Expiry.UTC()
		settings.LinkedInToken = token.AccessToken
		settings.LinkedInExpiry = &expiry
		err = cs.store.SaveUserSettings(r.Context(), settings)
	}
	if err != nil {
		cs.logger.Error("store linkedin token failed", "chat_id", chatID, "error", err)
		http.Error(w, "Could not store the connection. Try again.", http.StatusInternalServerError)
		return
	}

	if cs.notify != nil {
		cs.notify(chatID)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body><h2>LinkedIn connected.</h2><p>You can close this tab and go back to Telegram.</p></body></html>"))
}
