// Package config loads settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the server and the staff client need.
type Config struct {
	Server   ServerConfig
	Records  RecordsConfig
	Images   ImagesConfig
	Assist   AssistConfig
	Cache    CacheConfig
	Events   EventsConfig
	Client   ClientConfig
	LogPath  string `envconfig:"LOG_PATH"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// ServerConfig holds HTTP server and local database settings.
type ServerConfig struct {
	Addr        string   `envconfig:"ADDR" default:":8080" validate:"required"`
	DBPath      string   `envconfig:"DB_PATH" default:"zapuscina.sqlite3" validate:"required"`
	AdminUser   string   `envconfig:"ADMIN_USER" default:"Admin" validate:"required"`
	StaffUsers  string   `envconfig:"STAFF_USERS"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	// MaxAnalyzeBody caps the /api/analyze request size.
	MaxAnalyzeBody  int64         `envconfig:"MAX_ANALYZE_BODY" default:"4718592" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// RecordsConfig points at the external record store.
type RecordsConfig struct {
	URL    string `envconfig:"AIRTABLE_URL" default:"https://api.airtable.com" validate:"url"`
	Token  string `envconfig:"AIRTABLE_TOKEN"`
	BaseID string `envconfig:"AIRTABLE_BASE_ID"`
	Table  string `envconfig:"AIRTABLE_TABLE" default:"Inventory"`
}

// Configured reports whether the record store credentials are present.
func (r RecordsConfig) Configured() bool {
	return r.Token != "" && r.BaseID != "" && r.Table != ""
}

// ImagesConfig selects how images are persisted.
type ImagesConfig struct {
	Strategy  string `envconfig:"IMAGE_STRATEGY" default:"inline" validate:"oneof=inline hosted chunked"`
	ImgBBKey  string `envconfig:"IMGBB_API_KEY" validate:"required_if=Strategy hosted"`
	ChunkSize int    `envconfig:"IMAGE_CHUNK_SIZE" default:"95000" validate:"gt=0"`
	MaxChunks int    `envconfig:"IMAGE_MAX_CHUNKS" default:"5" validate:"gt=0"`
}

// AssistConfig configures the generative model behind /api/analyze.
type AssistConfig struct {
	APIKey string `envconfig:"GEMINI_API_KEY"`
	Model  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
}

// CacheConfig configures the item list cache.
type CacheConfig struct {
	Type          string        `envconfig:"CACHE_TYPE" default:"memory" validate:"oneof=memory redis none"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required_if=Type redis"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
}

// EventsConfig configures change publishing. An empty URL disables it.
type EventsConfig struct {
	AMQPURL  string `envconfig:"AMQP_URL"`
	Exchange string `envconfig:"AMQP_EXCHANGE" default:"zapuscina" validate:"required"`
}

// ClientConfig holds settings used by the staff command-line client.
type ClientConfig struct {
	ServerURL   string `envconfig:"SERVER_URL" default:"http://localhost:8080" validate:"url"`
	SessionPath string `envconfig:"SESSION_PATH"`
}

// Prefix is prepended to every environment variable name.
const Prefix = "ZAPUSCINA"

// Load reads an optional .env file from the working directory and then the
// environment. Variables already set in the environment win over the file.
// Each variable is looked up as ZAPUSCINA_<SECTION>_<NAME> first and then as
// the bare name, so AIRTABLE_TOKEN works as well as
// ZAPUSCINA_RECORDS_AIRTABLE_TOKEN.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Server.CORSOrigins = trimAll(cfg.Server.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, for example after flags override values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
