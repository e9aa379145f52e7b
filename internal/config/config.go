package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	PublicBaseURL string
	CookieSecure  bool

	LogLevel string
	LogDev   bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	KakaoIssuer       string
	KakaoClientID     string
	KakaoClientSecret string
	KakaoRedirectURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseDSN string

	SessionTTL  time.Duration
	TokenSecret string
	TokenIssuer string

	BackendURL     string
	BackendTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		CookieSecure:  getBool("COOKIE_SECURE", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDev:   os.Getenv("LOG_DEV") == "1",

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		KakaoIssuer:       getEnv("KAKAO_ISSUER", "https://kauth.kakao.com"),
		KakaoClientID:     os.Getenv("KAKAO_CLIENT_ID"),
		KakaoClientSecret: os.Getenv("KAKAO_CLIENT_SECRET"),
		KakaoRedirectURL:  os.Getenv("KAKAO_REDIRECT_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		SessionTTL:  getDuration("SESSION_TTL", 24*time.Hour),
		TokenSecret: os.Getenv("TOKEN_SECRET"),
		TokenIssuer: getEnv("TOKEN_ISSUER", "credit-service"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000/api"),
		BackendTimeout: getDuration("BACKEND_TIMEOUT", 15*time.Second),
	}

	return cfg
}

func (c Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if len(c.TokenSecret) < 32 {
		errs = append(errs, errors.New("TOKEN_SECRET must be at least 32 bytes"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}

	return errors.Join(errs...)
}

// GoogleEnabled reports whether Google login is fully configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// KakaoEnabled reports whether Kakao login is fully configured.
func (c Config) KakaoEnabled() bool {
	return c.KakaoClientID != "" && c.KakaoRedirectURL != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return n
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return d
}
