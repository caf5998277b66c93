package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/crispai/crisp/backend/repository"
)

// Server holds all server dependencies
type Server struct {
	config *Config

	mongoClient *mongo.Client
	repo        *repository.MongoRepository

	aiService *AIService
	storage   *StorageService

	authService        *AuthService
	authEndpoints      *AuthEndpoints
	interviewEndpoints *InterviewEndpoints
	candidateEndpoints *CandidateEndpoints
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{config: config}
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(client *mongo.Client, repo *repository.MongoRepository) {
	s.mongoClient = client
	s.repo = repo
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	s.aiService = NewAIService(s.config.AI)
	if s.config.AI.RequireAI {
		slog.Info("AI strict mode enabled, fallbacks disabled")
	}

	storage, err := NewStorageService(s.config.Upload.Dir)
	if err != nil {
		return err
	}
	s.storage = storage
	slog.Info("Storage service initialized", "dir", s.config.Upload.Dir)

	if s.config.JWT.Secret != "" && s.repo != nil {
		s.authService = NewAuthService(s.repo, s.config.JWT.Secret)
		s.authEndpoints = NewAuthEndpoints(s.authService)
		slog.Info("Authentication service initialized")
	} else {
		slog.Warn("Authentication not configured, protected routes disabled")
	}

	if s.repo != nil {
		s.interviewEndpoints = NewInterviewEndpoints(s.repo, s.aiService, s.storage, s.config.Upload.MaxSize)
		s.candidateEndpoints = NewCandidateEndpoints(s.repo)
	}

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   SplitOrigins(s.config.CORS.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API route group
	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		if s.authEndpoints != nil {
			s.authEndpoints.RegisterRoutes(r)
		}

		// Protected routes
		if s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)

				if s.authEndpoints != nil {
					s.authEndpoints.RegisterProtectedRoutes(r)
				}
				if s.interviewEndpoints != nil {
					s.interviewEndpoints.RegisterRoutes(r)
				}
				if s.candidateEndpoints != nil {
					s.candidateEndpoints.RegisterRoutes(r)
				}
			})
		}
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.mongoClient != nil {
		if err := s.mongoClient.Ping(r.Context(), nil); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))

	slog.Info("Health check", "status", status, "database", dbStatus)
}
