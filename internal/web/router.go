package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/events"
	webembed "github.com/erazemk/zapuscina/web"
)

// Config holds the page router's dependencies. Items may be nil when the
// record store is not configured.
type Config struct {
	DB            *sql.DB
	JWTSecret     string
	Authenticator auth.Authenticator
	Items         ItemLister
	Events        events.Publisher
	Now           func() time.Time
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(cfg Config) (http.Handler, error) {
	if cfg.Authenticator == nil {
		cfg.Authenticator = &auth.DBAuthenticator{DB: cfg.DB}
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	templates, err := LoadTemplates(cfg.Now)
	if err != nil {
		return nil, err
	}
	static, err := webembed.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("opening static assets: %w", err)
	}

	s := &Server{
		DB:            cfg.DB,
		Templates:     templates,
		JWTSecret:     cfg.JWTSecret,
		Authenticator: cfg.Authenticator,
		Items:         cfg.Items,
		Events:        cfg.Events,
		Now:           cfg.Now,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(cfg.JWTSecret, cfg.DB)
	staff := func(h http.HandlerFunc) http.Handler { return cookieAuth(RequireStaff(h)) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /login/bidder", s.BidderSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	// Any signed-in user.
	mux.Handle("GET /{$}", cookieAuth(http.HandlerFunc(s.Board)))
	mux.Handle("POST /auctions/{id}/bid", cookieAuth(http.HandlerFunc(s.BidSubmit)))

	// Staff.
	mux.Handle("GET /items", staff(s.ItemsPage))
	mux.Handle("POST /items/{id}/auction", staff(s.AuctionSubmit))

	return mux, nil
}
