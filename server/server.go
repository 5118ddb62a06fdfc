// Package server handles the subscription HTTP endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"reddit-newsletter/pkg/newsletter"
	"reddit-newsletter/store"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	// Subreddit names: letters, digits, underscores, 3-21 chars.
	topicRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,21}$`)
)

// Store is the subscription persistence the server needs.
type Store interface {
	CreateUser(ctx context.Context, email, firstName, lastName string, topics []string) (newsletter.User, error)
	Unsubscribe(ctx context.Context, email string) error
}

// Trigger starts a digest run, used by the manual trigger endpoint.
type Trigger interface {
	Run(ctx context.Context) error
}

// Server handles HTTP requests.
type Server struct {
	store   Store
	trigger Trigger
	logger  *slog.Logger
}

// New creates a new HTTP server handler.
func New(st Store, trigger Trigger, logger *slog.Logger) *Server {
	return &Server{
		store:   st,
		trigger: trigger,
		logger:  logger,
	}
}

// Handler sets up all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/subscribe", s.handleSubscribe)
	mux.HandleFunc("/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("/pollz", s.handleTrigger)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

type subscribeRequest struct {
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Topics    []string `json:"topics"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !emailRegex.MatchString(req.Email) {
		http.Error(w, "Invalid email address", http.StatusBadRequest)
		return
	}
	if len(req.Topics) == 0 {
		http.Error(w, "At least one topic required", http.StatusBadRequest)
		return
	}
	for _, topic := range req.Topics {
		if !topicRegex.MatchString(topic) {
			http.Error(w, "Invalid topic name: "+topic, http.StatusBadRequest)
			return
		}
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), req.Topics)
	if err != nil {
		s.logger.Error("Subscribe failed", "email", req.Email, "error", err)
		http.Error(w, "Subscription failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("User subscribed", "email", user.Email, "topics", len(user.Topics))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"email":  user.Email,
		"topics": user.Topics,
	}); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	err := s.store.Unsubscribe(r.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Unknown email address", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Unsubscribe failed", "email", req.Email, "error", err)
		http.Error(w, "Unsubscribe failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("User unsubscribed", "email", req.Email)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"unsubscribed"}`)); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// handleTrigger lets operators kick off a digest run without a queue message.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Manual trigger endpoint hit")

	if err := s.trigger.Run(r.Context()); err != nil {
		s.logger.Error("Manual digest run failed", "error", err)
		http.Error(w, "Run failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"completed"}`)); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
