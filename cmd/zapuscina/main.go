package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zapuscina/internal/airtable"
	"github.com/erazemk/zapuscina/internal/api"
	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/cache"
	"github.com/erazemk/zapuscina/internal/config"
	"github.com/erazemk/zapuscina/internal/db"
	"github.com/erazemk/zapuscina/internal/events"
	"github.com/erazemk/zapuscina/internal/gemini"
	"github.com/erazemk/zapuscina/internal/imagestore"
	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/logging"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/repository"
	"github.com/erazemk/zapuscina/internal/store"
	"github.com/erazemk/zapuscina/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("zapuscina", flag.ContinueOnError)

	fs.StringVar(&cfg.Server.DBPath, "db", cfg.Server.DBPath, "")
	fs.StringVar(&cfg.Server.DBPath, "d", cfg.Server.DBPath, "")

	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "")
	fs.StringVar(&cfg.Server.Addr, "a", cfg.Server.Addr, "")

	fs.StringVar(&cfg.Server.AdminUser, "user", cfg.Server.AdminUser, "")
	fs.StringVar(&cfg.Server.AdminUser, "u", cfg.Server.AdminUser, "")

	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")

	fs.StringVar(&cfg.LogLevel, "level", cfg.LogLevel, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: zapuscina [flags]

Flags:
  -d, -db <path>          SQLite database path (default: zapuscina.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         rotated log file path (default: stdout/stderr only)
  -level <level>          debug, info, warn or error (default: info)
  -h, -help               show this help and exit

Record store, images, model, cache and event settings are read from the
environment or a .env file (AIRTABLE_TOKEN, IMAGE_STRATEGY, GEMINI_API_KEY,
CACHE_TYPE, AMQP_URL, ...).
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dbPath := cfg.Server.DBPath

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(dbPath, cfg.Server.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(dbPath, cfg.Server.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", dbPath)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	go purgeRevokedTokens(ctx, database, time.Hour)

	authn, err := newAuthenticator(cfg.Server, database)
	if err != nil {
		return err
	}

	items, err := newItemStore(cfg)
	if err != nil {
		return err
	}

	itemCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if itemCache != nil {
		defer itemCache.Close()
	}

	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var analyzer api.Analyzer
	if cfg.Assist.APIKey != "" {
		m, err := gemini.New(ctx, cfg.Assist.APIKey, cfg.Assist.Model)
		if err != nil {
			return err
		}
		analyzer = m
		slog.Info("analysis model ready", "model", cfg.Assist.Model)
	} else {
		slog.Warn("GEMINI_API_KEY not set, /api/analyze will report a missing key")
	}

	apiRouter := api.NewRouter(api.Config{
		DB:             database,
		JWTSecret:      jwtSecret,
		Authenticator:  authn,
		Items:          items,
		Cache:          itemCache,
		CacheTTL:       cfg.Cache.TTL,
		Events:         publisher,
		Compressor:     imaging.New(),
		Analyzer:       analyzer,
		MaxAnalyzeBody: cfg.Server.MaxAnalyzeBody,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})

	var lister web.ItemLister
	if items != nil {
		lister = items
	}
	webRouter, err := web.NewRouter(web.Config{
		DB:            database,
		JWTSecret:     jwtSecret,
		Authenticator: authn,
		Items:         lister,
		Events:        publisher,
	})
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web pages handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/metrics", apiRouter)
	mux.Handle("/", api.Recovery(api.RequestID(api.LoggingMiddleware(webRouter))))
	handler := mux

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	cancel()
	slog.Info("server stopped, closing database")
	return nil
}

// purgeRevokedTokens clears expired revocations every interval until ctx ends.
func purgeRevokedTokens(ctx context.Context, database *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Warn("purging revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged revoked tokens", "count", n)
			}
		}
	}
}

// newAuthenticator checks STAFF_USERS before the users table when it is set.
func newAuthenticator(cfg config.ServerConfig, database *sql.DB) (auth.Authenticator, error) {
	dbAuth := &auth.DBAuthenticator{DB: database}
	if cfg.StaffUsers == "" {
		return dbAuth, nil
	}
	static, err := auth.ParseCredentials(cfg.StaffUsers)
	if err != nil {
		return nil, fmt.Errorf("parsing STAFF_USERS: %w", err)
	}
	slog.Info("static staff credentials enabled")
	return auth.Chain{static, dbAuth}, nil
}

func newItemStore(cfg *config.Config) (api.ItemStore, error) {
	if !cfg.Records.Configured() {
		slog.Warn("record store not configured, item endpoints are disabled")
		return nil, nil
	}

	client := airtable.New(cfg.Records.Token, cfg.Records.BaseID, cfg.Records.Table)
	client.BaseURL = cfg.Records.URL

	var uploader imagestore.Uploader
	if cfg.Images.ImgBBKey != "" {
		uploader = imagestore.NewImgBB(cfg.Images.ImgBBKey)
	}
	strategy, err := imagestore.New(cfg.Images.Strategy, uploader)
	if err != nil {
		return nil, err
	}
	if c, ok := strategy.(*imagestore.Chunked); ok {
		c.ChunkSize = cfg.Images.ChunkSize
		c.MaxChunks = cfg.Images.MaxChunks
	}

	slog.Info("record store ready", "table", cfg.Records.Table, "images", strategy.Name())
	return repository.New(client, strategy), nil
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("item cache ready", "type", "redis", "addr", cfg.RedisAddr)
		return c, nil
	case "none":
		return nil, nil
	default:
		return cache.NewMemoryCache(time.Minute), nil
	}
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.Nop{}, nil
	}
	p, err := events.DialAMQP(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	slog.Info("event publishing ready", "exchange", cfg.Exchange)
	return p, nil
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(step string, err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("%s: %w", step, err)
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail("ensuring schema", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail("generating password", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail("hashing password", err)
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, string(hash), model.RoleAdmin); err != nil {
		return fail("creating admin user", err)
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("Staff accounts can be added from the admin account.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
