// Package config loads server settings from an optional YAML file and
// the environment. Environment values win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string            `yaml:"port"`
	DatabaseURL string            `yaml:"db_url"`
	NATS        NATSConfig        `yaml:"nats"`
	JWT         JWTConfig         `yaml:"jwt"`
	Google      GoogleConfig      `yaml:"google"`
	S3          S3Config          `yaml:"s3"`
	APNS        APNSConfig        `yaml:"apns"`
	Chat        ChatConfig        `yaml:"chat"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

type NATSConfig struct {
	URL      string `yaml:"url"`
	Cred     string `yaml:"cred"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type APNSConfig struct {
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// Enabled reports whether push delivery is configured.
func (a APNSConfig) Enabled() bool {
	return a.KeyFile != ""
}

type ChatConfig struct {
	FeedLimit         int           `yaml:"feed_limit"`
	MessageLimit      int           `yaml:"message_limit"`
	LimitImages       bool          `yaml:"limit_images"`
	ResortOnTimestamp bool          `yaml:"resort_on_timestamp"`
	PendingTTL        time.Duration `yaml:"pending_ttl"`
}

type DiagnosticsConfig struct {
	File string `yaml:"file"`
}

func defaults() Config {
	return Config{
		Port: "8080",
		JWT:  JWTConfig{Issuer: "friendlychat"},
		S3:   S3Config{Region: "us-east-1"},
		Chat: ChatConfig{
			FeedLimit:    12,
			MessageLimit: 10,
			PendingTTL:   10 * time.Minute,
		},
	}
}

// Load reads .env if present, then the YAML file named by CONFIG_FILE,
// then applies environment overrides and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("internal/config: failed to load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("internal/config: failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("internal/config: failed to parse config file: %w", err)
	}

	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("DB_URL", &c.DatabaseURL)
	str("NATS_URL", &c.NATS.URL)
	str("NATS_CRED", &c.NATS.Cred)
	str("NATS_USER", &c.NATS.User)
	str("NATS_PASSWORD", &c.NATS.Password)
	str("JWT_SECRET", &c.JWT.Secret)
	str("JWT_ISS", &c.JWT.Issuer)
	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str("GOOGLE_REDIRECT_URL", &c.Google.RedirectURL)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("S3_PUBLIC_BASE_URL", &c.S3.PublicBaseURL)
	str("APNS_KEY_FILE", &c.APNS.KeyFile)
	str("APNS_KEY_ID", &c.APNS.KeyID)
	str("APNS_TEAM_ID", &c.APNS.TeamID)
	str("APNS_TOPIC", &c.APNS.Topic)
	str("DIAGNOSTICS_FILE", &c.Diagnostics.File)

	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	num("FEED_LIMIT", &c.Chat.FeedLimit)
	num("MESSAGE_LIMIT", &c.Chat.MessageLimit)
	flag("LIMIT_IMAGES", &c.Chat.LimitImages)
	flag("RESORT_ON_TIMESTAMP", &c.Chat.ResortOnTimestamp)
	flag("APNS_PRODUCTION", &c.APNS.Production)

	if v, ok := lookup("PENDING_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PENDING_TTL: %w", err))
		} else {
			c.Chat.PendingTTL = d
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("internal/config: invalid environment: %w", err)
	}
	return nil
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DB_URL is not set"))
	}
	if c.NATS.URL == "" {
		errs = append(errs, errors.New("NATS_URL is not set"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.S3.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is not set"))
	}
	if c.Chat.FeedLimit <= 0 {
		errs = append(errs, errors.New("FEED_LIMIT must be positive"))
	}
	if c.Chat.MessageLimit <= 0 {
		errs = append(errs, errors.New("MESSAGE_LIMIT must be positive"))
	}
	if c.Chat.PendingTTL < time.Second {
		errs = append(errs, errors.New("PENDING_TTL must be at least 1s"))
	}
	if c.APNS.Enabled() && (c.APNS.KeyID == "" || c.APNS.TeamID == "" || c.APNS.Topic == "") {
		errs = append(errs, errors.New("APNS_KEY_ID, APNS_TEAM_ID and APNS_TOPIC are required with APNS_KEY_FILE"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("internal/config: %w", err)
	}
	return nil
}
