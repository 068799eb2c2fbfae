package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gavelhouse/gavel/internal/api/handler"
	"github.com/gavelhouse/gavel/internal/api/middleware"
	"github.com/gavelhouse/gavel/internal/auction/gateway"
	"github.com/gavelhouse/gavel/internal/auth"
	"github.com/gavelhouse/gavel/internal/items"
	"github.com/gavelhouse/gavel/internal/storage"
)

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	AuthService *auth.Service
	ItemsApp    *items.App
	Store       storage.Store
	Coordinator *gateway.Coordinator
}

// NewRouter creates the HTTP router: REST API, health check and the
// WebSocket auction endpoint.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(cfg.AuthService)
	itemsHandler := handler.NewItemsHandler(cfg.ItemsApp)
	usersHandler := handler.NewUsersHandler(cfg.Store)

	authMiddleware := middleware.Auth(cfg.AuthService)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	// The coordinator checks the token itself, before the upgrade.
	r.HandleFunc("/ws", cfg.Coordinator.HandleAuction)

	api := r.PathPrefix("/api").Subrouter()

	// Auth routes (no token needed for register/login)
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.Handle("/auth/logout", authMiddleware(http.HandlerFunc(authHandler.Logout))).Methods(http.MethodPost)

	// Item routes
	api.HandleFunc("/items", itemsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", itemsHandler.Get).Methods(http.MethodGet)
	api.Handle("/items", authMiddleware(http.HandlerFunc(itemsHandler.Create))).Methods(http.MethodPost)
	api.Handle("/items/{id}", authMiddleware(http.HandlerFunc(itemsHandler.Delete))).Methods(http.MethodDelete)

	// User directory
	api.Handle("/users", authMiddleware(http.HandlerFunc(usersHandler.List))).Methods(http.MethodGet)

	return r
}
