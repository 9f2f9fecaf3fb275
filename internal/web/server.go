// Package web serves the OAuth and frontend-facing HTTP surface next to
// the relay: the frontend redirect, the health check, and the two-step
// OAuth flow that hands a session token back to the frontend.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/omochice/presence-relay/internal/auth"
)

// Server is the HTTP server for the OAuth and frontend routes.
type Server struct {
	address     string
	frontendURL string
	clients     map[auth.Provider]*auth.Client
	issuer      *auth.TokenIssuer
	logger      *log.Logger
	listener    net.Listener
	server      *http.Server
}

// New creates the web server. clients holds one entry per configured
// provider; unconfigured providers answer with an error.
func New(address, frontendURL string, clients map[auth.Provider]*auth.Client, issuer *auth.TokenIssuer) *Server {
	return &Server{
		address:     address,
		frontendURL: frontendURL,
		clients:     clients,
		issuer:      issuer,
		logger:      log.New(os.Stdout, "[web] ", log.LstdFlags),
	}
}

// Handler returns the full route tree with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /auth/{provider}", s.handleInitiate)
	mux.HandleFunc("GET /auth/{provider}/callback", s.handleCallback)

	return s.logging(cors(mux))
}

// Start starts serving. It blocks until Stop is called and returns nil
// on a clean shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Printf("Web server started on %s", listener.Addr().String())

	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Printf("Web server shutdown error: %v", err)
	}
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.frontendURL, http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleInitiate answers with the provider consent URL the frontend
// should send the user to.
func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	client, ok := s.client(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		URL string `json:"url"`
	}{client.AuthURL(uuid.NewString())})
}

// handleCallback exchanges the authorization code, fetches the profile,
// mints a session token, and redirects back to the frontend with the
// identity in the query string.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	client, ok := s.client(w, r)
	if !ok {
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	token, err := client.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Printf("OAuth exchange failed: %v", err)
		http.Error(w, "OAuth exchange failed", http.StatusBadGateway)
		return
	}

	identity, err := client.Profile(r.Context(), token)
	if err != nil {
		s.logger.Printf("Profile fetch failed: %v", err)
		http.Error(w, "failed to get user profile", http.StatusBadGateway)
		return
	}

	session, err := s.issuer.Mint(identity)
	if err != nil {
		s.logger.Printf("Token mint failed: %v", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	redirect := fmt.Sprintf("%s/oauth/callback?provider=%s&token=%s&username=%s&email=%s",
		s.frontendURL,
		url.QueryEscape(string(identity.Provider)),
		url.QueryEscape(session),
		url.QueryEscape(identity.Username),
		url.QueryEscape(identity.Email),
	)
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// client resolves the provider from the request path and writes the
// error response itself when the provider is unknown or unconfigured.
func (s *Server) client(w http.ResponseWriter, r *http.Request) (*auth.Client, bool) {
	provider, err := auth.ParseProvider(r.PathValue("provider"))
	if err != nil {
		http.Error(w, "invalid provider", http.StatusBadRequest)
		return nil, false
	}
	client, ok := s.clients[provider]
	if !ok {
		http.Error(w, "OAuth not configured", http.StatusInternalServerError)
		return nil, false
	}
	return client, true
}

// logging logs one line per request.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// cors allows the frontend, served from a different origin, to call the
// auth endpoints.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
