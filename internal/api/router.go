package api

import (
	"net/http"
	"strings"

	"github.com/example/pickup-orders/internal/api/middleware"
	"github.com/example/pickup-orders/internal/auth"
)

type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	Stream       *StreamHandler
	JWTService   *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	staff := chain(middleware.Auth(cfg.JWTService), middleware.RequireRole("staff", "admin"))
	admin := chain(middleware.Auth(cfg.JWTService), middleware.RequireRole("admin"))

	// Public

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg.AuthHandlers.Login(w, r)
	})

	mux.HandleFunc("/menu", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg.Handlers.ListMenu(w, r)
	})

	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg.Handlers.ListLocations(w, r)
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Orders

	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.Handlers.CreateOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/orders/pending", staff(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg.Handlers.PendingOrders(w, r)
	})))

	mux.Handle("/orders/", staff(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/reject") && r.Method == http.MethodPost:
			cfg.Handlers.RejectOrder(w, r)
		case strings.HasSuffix(path, "/accept") && r.Method == http.MethodPost:
			cfg.Handlers.AcceptOrder(w, r)
		case strings.HasSuffix(path, "/complete") && r.Method == http.MethodPost:
			cfg.Handlers.CompleteOrder(w, r)
		case r.Method == http.MethodGet:
			cfg.Handlers.GetOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Admin restock

	mux.Handle("/menu/", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/restock") && r.Method == http.MethodPost {
			cfg.Handlers.RestockItem(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})))

	// Dashboard stream

	mux.Handle("/dashboard/stream", staff(cfg.Stream))

	return mux
}

func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
