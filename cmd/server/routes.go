package main

import (
	"database/sql"
	"net/http"
	"time"

	"pairchat/internal/chat"
	"pairchat/internal/config"
	"pairchat/internal/connection"
	"pairchat/internal/message"
	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/pairing"
	"pairchat/internal/user"
	"pairchat/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// stores is the persistence layer selected by STORE_DRIVER.
type stores struct {
	users       user.Repository
	connections connection.Repository
	messages    message.Repository
}

func postgresStores(conn *sql.DB, timeout time.Duration) *stores {
	return &stores{
		users:       user.NewPostgresRepository(conn, timeout),
		connections: connection.NewPostgresRepository(conn, timeout),
		messages:    message.NewPostgresRepository(conn, timeout),
	}
}

func memoryStores() *stores {
	connections := connection.NewMemoryRepository()
	return &stores{
		users:       user.NewMemoryRepository(),
		connections: connections,
		messages:    message.NewMemoryRepository(connections),
	}
}

// newRouter wires services and handlers onto one chi router. The hub must be
// running for websocket and message delivery to work.
func newRouter(cfg *config.Config, s *stores, hub *chat.Hub, limiter *myMiddleware.RateLimiter, userService *user.Service) http.Handler {
	connectionService := connection.NewService(s.connections, userService)
	chatRouter := chat.NewRouter(hub, connectionService, s.messages)
	messageService := message.NewService(s.messages, connectionService).WithDeliverer(chatRouter)
	pairingService := pairing.NewService(pairing.NewValidator(userService, cfg.PairingTTL), connectionService)

	userHandler := user.NewHandler(userService)
	connectionHandler := connection.NewHandler(connectionService)
	messageHandler := message.NewHandler(messageService)
	pairingHandler := pairing.NewHandler(pairingService)
	chatHandler := chat.NewHandler(hub, chatRouter, cfg.ClientURL)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(myMiddleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusNotFound, map[string]string{"error": "Route not found"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Handle)
		}

		// Public Routes
		r.Post("/users/register", userHandler.Register)
		r.Post("/users/login", userHandler.Login)

		// Protected Routes (Require JWT)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handle)
			r.Get("/users/me", userHandler.Me)
			r.Route("/connections", connectionHandler.Routes)
			r.Route("/messages", messageHandler.Routes)
			r.Route("/qr", pairingHandler.Routes)
		})
	})

	r.With(authMiddleware.Handle).Get("/ws", chatHandler.ServeWs)

	return r
}
