package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/config"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/database"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/metrics"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/realtime"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/repositories"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/services"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/ws"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repositories.NewPostgresUserRepository(postgresPool)
	groupRepo := repositories.NewPostgresGroupRepository(postgresPool)
	conversationRepo := repositories.NewPostgresConversationRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)
	typingRepo := repositories.NewRedisTypingRepository(redisClient)
	callRepo := repositories.NewRedisCallRepository(redisClient)
	rateRepo := repositories.NewRedisRateLimitRepository(redisClient)

	// Services
	authService := services.NewAuthService(userRepo, sessionRepo, cfg.JWTSecret, cfg.JWTExpiry)
	directory := services.NewDirectoryService(userRepo, groupRepo, conversationRepo, authService)

	// Realtime engine
	registry := realtime.NewRegistry()
	rooms := realtime.NewRoomManager(registry)
	presence := realtime.NewPresenceEngine(presenceRepo, directory, rooms)
	registry.SetListener(presence)
	typing := realtime.NewTypingCoordinator(typingRepo, directory, registry, rooms)
	calls := realtime.NewCallCoordinator(callRepo, directory, rooms)
	guard := realtime.NewRateGuard(rateRepo)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	recorder := metrics.NewRecorder(promRegistry, registry.CountAll)

	dispatcher := realtime.NewDispatcher(guard, recorder)
	realtime.RegisterHandlers(dispatcher, presence, typing, calls)

	gateway := ws.NewGateway(directory, registry, rooms, dispatcher, typing, cfg.AllowedOrigins)

	// Initialize HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	router.Get("/ws", gateway.ServeWS)

	router.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", handleRegister(authService))
		r.Post("/login", handleLogin(authService))
		r.Post("/logout", handleLogout(authService))
	})

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func handleRegister(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email, username and password are required")
			return
		}

		if err := auth.Register(r.Context(), req.Email, req.Username, req.Password); err != nil {
			if errors.Is(err, services.ErrEmailExists) {
				writeError(w, http.StatusConflict, "email already exists")
				return
			}
			log.Printf("register failed: %v", err)
			writeError(w, http.StatusInternalServerError, "registration failed")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	}
}

func handleLogin(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, services.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid email or password")
				return
			}
			log.Printf("login failed: %v", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleLogout(auth *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		if err := auth.Logout(r.Context(), token); err != nil {
			if errors.Is(err, services.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			log.Printf("logout failed: %v", err)
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
