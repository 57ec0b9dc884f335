package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Ledger drivers.
const (
	LedgerDriverPostgres = "postgres"
	LedgerDriverMemory   = "memory"
)

type Config struct {
	Env        string
	Port       int
	APIPrefix  string
	PublicHost string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Certificates CertificatesConfig
	Quiz         QuizConfig
	Reconcile    ReconcileConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CertificatesConfig controls code generation, ledger backend and document branding.
type CertificatesConfig struct {
	LedgerDriver    string
	CodePrefix      string
	CodeMaxAttempts int
	IssuerName      string
	SignatoryName   string
	SignatoryTitle  string
}

// QuizConfig tunes the eligibility gate and the external question generator.
type QuizConfig struct {
	PassingScore     int
	QuestionCount    int
	SessionTTL       time.Duration
	GeneratorURL     string
	GeneratorAPIKey  string
	GeneratorTimeout time.Duration
}

// ReconcileConfig sizes the ledger repair worker.
type ReconcileConfig struct {
	Workers   int
	Retries   int
	OnStart   bool
	BatchSize int
	Schedule  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicHost = strings.TrimSpace(v.GetString("PUBLIC_HOST"))

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Certificates = CertificatesConfig{
		LedgerDriver:    strings.ToLower(v.GetString("LEDGER_DRIVER")),
		CodePrefix:      strings.ToUpper(v.GetString("CERT_CODE_PREFIX")),
		CodeMaxAttempts: v.GetInt("CERT_CODE_MAX_ATTEMPTS"),
		IssuerName:      v.GetString("CERT_ISSUER_NAME"),
		SignatoryName:   v.GetString("CERT_SIGNATORY_NAME"),
		SignatoryTitle:  v.GetString("CERT_SIGNATORY_TITLE"),
	}

	cfg.Quiz = QuizConfig{
		PassingScore:     v.GetInt("QUIZ_PASSING_SCORE"),
		QuestionCount:    v.GetInt("QUIZ_QUESTION_COUNT"),
		SessionTTL:       parseDuration(v.GetString("QUIZ_SESSION_TTL"), 2*time.Hour),
		GeneratorURL:     v.GetString("QUIZ_GENERATOR_URL"),
		GeneratorAPIKey:  v.GetString("QUIZ_GENERATOR_API_KEY"),
		GeneratorTimeout: parseDuration(v.GetString("QUIZ_GENERATOR_TIMEOUT"), 30*time.Second),
	}

	cfg.Reconcile = ReconcileConfig{
		Workers:   v.GetInt("RECONCILE_WORKERS"),
		Retries:   v.GetInt("RECONCILE_RETRIES"),
		OnStart:   v.GetBool("RECONCILE_ON_START"),
		BatchSize: v.GetInt("RECONCILE_BATCH_SIZE"),
		Schedule:  strings.TrimSpace(v.GetString("RECONCILE_SCHEDULE")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_HOST", "localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "coursevault")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "coursevault")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LEDGER_DRIVER", LedgerDriverPostgres)
	v.SetDefault("CERT_CODE_PREFIX", "CV")
	v.SetDefault("CERT_CODE_MAX_ATTEMPTS", 5)
	v.SetDefault("CERT_ISSUER_NAME", "CourseVault Academy")
	v.SetDefault("CERT_SIGNATORY_NAME", "Dr. Amelia Hart")
	v.SetDefault("CERT_SIGNATORY_TITLE", "Director of Learning")

	v.SetDefault("QUIZ_PASSING_SCORE", 6)
	v.SetDefault("QUIZ_QUESTION_COUNT", 10)
	v.SetDefault("QUIZ_SESSION_TTL", "2h")
	v.SetDefault("QUIZ_GENERATOR_URL", "")
	v.SetDefault("QUIZ_GENERATOR_API_KEY", "")
	v.SetDefault("QUIZ_GENERATOR_TIMEOUT", "30s")

	v.SetDefault("RECONCILE_WORKERS", 1)
	v.SetDefault("RECONCILE_RETRIES", 3)
	v.SetDefault("RECONCILE_ON_START", false)
	v.SetDefault("RECONCILE_BATCH_SIZE", 200)
	v.SetDefault("RECONCILE_SCHEDULE", "@every 15m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
