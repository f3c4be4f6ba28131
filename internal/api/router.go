package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/cache"
	"github.com/erazemk/zapuscina/internal/events"
	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/model"
)

// Config holds the router's dependencies. Items and Analyzer may be nil when
// the record store or the model is not configured; their endpoints then
// report the missing configuration.
type Config struct {
	DB            *sql.DB
	JWTSecret     string
	Authenticator auth.Authenticator

	Items    ItemStore
	Cache    cache.Cache
	CacheTTL time.Duration
	Events   events.Publisher

	Compressor     *imaging.Compressor
	Analyzer       Analyzer
	MaxAnalyzeBody int64

	CORSOrigins []string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	if cfg.Authenticator == nil {
		cfg.Authenticator = &auth.DBAuthenticator{DB: cfg.DB}
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Compressor == nil {
		cfg.Compressor = imaging.New()
	}
	if cfg.MaxAnalyzeBody <= 0 {
		cfg.MaxAnalyzeBody = DefaultMaxAnalyzeBody
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: cfg.DB, JWTSecret: cfg.JWTSecret, Authenticator: cfg.Authenticator}
	usersHandler := &UsersHandler{DB: cfg.DB}
	itemsHandler := &ItemsHandler{Items: cfg.Items, Cache: cfg.Cache, CacheTTL: cfg.CacheTTL, Events: cfg.Events}
	imagesHandler := &ImagesHandler{Compressor: cfg.Compressor}
	analyzeHandler := &AnalyzeHandler{Analyzer: cfg.Analyzer, MaxBody: cfg.MaxAnalyzeBody}
	auctionsHandler := &AuctionsHandler{DB: cfg.DB, Events: cfg.Events}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireStaff := RequireRole(model.RoleStaff)

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/bidder", authHandler.BidderLogin)
	mux.HandleFunc("POST /api/analyze", analyzeHandler.Analyze)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items (staff+).
	mux.Handle("GET /api/items", authMW(requireStaff(http.HandlerFunc(itemsHandler.List))))
	mux.Handle("POST /api/items", authMW(requireStaff(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("PUT /api/items/{id}", authMW(requireStaff(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireStaff(http.HandlerFunc(itemsHandler.Delete))))

	mux.Handle("POST /api/images", authMW(requireStaff(http.HandlerFunc(imagesHandler.Upload))))

	// Auctions: read and bid (any role), create and close (staff+).
	mux.Handle("GET /api/auctions", authMW(http.HandlerFunc(auctionsHandler.List)))
	mux.Handle("POST /api/auctions", authMW(requireStaff(http.HandlerFunc(auctionsHandler.Create))))
	mux.Handle("GET /api/auctions/{id}", authMW(http.HandlerFunc(auctionsHandler.Get)))
	mux.Handle("DELETE /api/auctions/{id}", authMW(requireStaff(http.HandlerFunc(auctionsHandler.Delete))))
	mux.Handle("GET /api/auctions/{id}/bids", authMW(requireStaff(http.HandlerFunc(auctionsHandler.ListBids))))
	mux.Handle("POST /api/auctions/{id}/bids", authMW(http.HandlerFunc(auctionsHandler.PlaceBid)))

	corsMW := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	})

	return Recovery(RequestID(corsMW(LoggingMiddleware(mux))))
}
