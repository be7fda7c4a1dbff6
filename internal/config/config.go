package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSecretKey     = "fallback-dev-key"
	defaultAdminPassword = "admin123"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	BaseURL  string

	LogLevel  string
	LogFormat string
	LogFile   string

	SecretKey         string
	AdminPassword     string
	AdminPasswordHash string
	CSRFEnabled       bool

	OTPTTL           time.Duration
	LoginPerMinute   int
	VerifyPerMinute  int
	UploadMaxBytes   int64
	StorageBucketURL string
	StoragePublicURL string
	KafkaBrokers     []string
	KafkaTopicTicket string
	TrustedProxies   []string
	rawDatabaseURL   string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}

	Mail struct {
		Server   string
		Port     int
		Username string
		Password string
		From     string
		Admin    string
	}
}

// Load читает .env (если есть) и переменные окружения, подставляя значения по умолчанию.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:           getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:          firstEnv("APP_PORT", "HTTP_PORT", "5000"),
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		LogFile:           getEnv("LOG_FILE", ""),
		SecretKey:         getEnv("SECRET_KEY", defaultSecretKey),
		AdminPassword:     getEnv("ADMIN_PASSWORD", defaultAdminPassword),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		StorageBucketURL:  getEnv("STORAGE_BUCKET_URL", "mem://"),
		StoragePublicURL:  getEnv("STORAGE_PUBLIC_URL", ""),
		KafkaBrokers:      ParseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicTicket:  getEnv("KAFKA_TOPIC_TICKET", ""),
		TrustedProxies:    ParseList(getEnv("TRUSTED_PROXIES", "")),
		rawDatabaseURL:    getEnv("DATABASE_URL", ""),
	}
	var err error
	if cfg.CSRFEnabled, err = getBool("CSRF_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getDuration("OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LoginPerMinute, err = getInt("RATE_LOGIN_PER_MIN", 5); err != nil {
		return nil, err
	}
	if cfg.VerifyPerMinute, err = getInt("RATE_VERIFY_PER_MIN", 10); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("UPLOAD_MAX_BYTES", 5<<20)
	if err != nil {
		return nil, err
	}
	cfg.UploadMaxBytes = int64(maxUpload)

	cfg.BaseURL = strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:"+cfg.HTTPPort), "/")

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "support_desk")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Mail.Server = getEnv("MAIL_SERVER", "")
	if cfg.Mail.Port, err = getInt("MAIL_PORT", 2525); err != nil {
		return nil, err
	}
	cfg.Mail.Username = getEnv("MAIL_USERNAME", "")
	cfg.Mail.Password = getEnv("MAIL_PASSWORD", "")
	cfg.Mail.From = firstEnv("MAIL_FROM", "MAIL_USERNAME", "support@localhost")
	cfg.Mail.Admin = firstEnv("MAIL_ADMIN", "MAIL_USERNAME", "")
	return cfg, nil
}

// Validate проверяет, что конфигурация пригодна для запуска (секреты в production, цель БД).
func (c *Config) Validate() error {
	if c.rawDatabaseURL == "" && (c.DB.Host == "" || c.DB.Database == "") {
		return errors.New("config: DATABASE_URL or DB_HOST and DB_DATABASE are required")
	}
	if c.StorageBucketURL == "" {
		return errors.New("config: STORAGE_BUCKET_URL is required")
	}
	if c.OTPTTL <= 0 {
		return errors.New("config: OTP_TTL must be positive")
	}
	if c.LoginPerMinute <= 0 || c.VerifyPerMinute <= 0 {
		return errors.New("config: rate limits must be positive")
	}
	if c.IsProduction() {
		if c.SecretKey == defaultSecretKey || len(c.SecretKey) < 32 {
			return errors.New("config: in production SECRET_KEY must be set (32+ chars)")
		}
		if c.AdminPasswordHash == "" && c.AdminPassword == defaultAdminPassword {
			return errors.New("config: in production ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
		}
		if c.rawDatabaseURL == "" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// DSN возвращает строку подключения для драйвера gorm postgres.
func (c *Config) DSN() string {
	if c.rawDatabaseURL != "" {
		return c.rawDatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	if c.rawDatabaseURL != "" {
		return c.rawDatabaseURL
	}
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// ParseList разбивает строку "a,b , c" на непустые элементы без пробелов.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
