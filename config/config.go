package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Pool    PoolConfig    `yaml:"pool"`
	Notify  NotifyConfig  `yaml:"notify"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig controla el servidor HTTP.
type ServerConfig struct {
	Addr                   string   `yaml:"addr"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	RatePerSec             float64  `yaml:"rate_per_sec"` // por participante; 0 = sin límite
	RateBurst              int      `yaml:"rate_burst"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`    // ruta SQLite (":memory:" para pruebas) o DSN de Postgres
}

// AuthConfig controla la emisión y validación de tokens.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	Issuer        string `yaml:"issuer"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// PoolConfig son los valores por defecto de los pools nuevos.
type PoolConfig struct {
	DefaultBuyin          string `yaml:"default_buyin"`
	DefaultLegs           int    `yaml:"default_legs"`
	DefaultWinningLegs    int    `yaml:"default_winning_legs"`
	SubmissionWindowHours int    `yaml:"submission_window_hours"`
	VotingWindowHours     int    `yaml:"voting_window_hours"`
}

// NotifyConfig controla la entrega de eventos de actividad.
type NotifyConfig struct {
	Console     bool    `yaml:"console"`
	WebhookURL  string  `yaml:"webhook_url"`
	WebhookRate float64 `yaml:"webhook_rate_per_sec"`
	QueueSize   int     `yaml:"queue_size"`
	Workers     int     `yaml:"workers"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig controla la exposición de métricas Prometheus.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// ShutdownTimeout devuelve el tiempo máximo de cierre ordenado.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// TokenTTL devuelve la validez de los tokens emitidos.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// DefaultBuyin devuelve el buy-in por defecto como decimal.
func (c *Config) DefaultBuyin() decimal.Decimal {
	d, err := decimal.NewFromString(c.Pool.DefaultBuyin)
	if err != nil {
		return decimal.NewFromInt(2)
	}
	return d
}

// SubmissionWindow devuelve la ventana de envíos desde la creación del pool.
func (c *Config) SubmissionWindow() time.Duration {
	return time.Duration(c.Pool.SubmissionWindowHours) * time.Hour
}

// VotingWindow devuelve la ventana de votación tras el cierre de envíos.
func (c *Config) VotingWindow() time.Duration {
	return time.Duration(c.Pool.VotingWindowHours) * time.Hour
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ACCAPOOL_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("ACCAPOOL_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("ACCAPOOL_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ACCAPOOL_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 20
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "accapool.db"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "accapool"
	}
	if cfg.Auth.TokenTTLHours <= 0 {
		cfg.Auth.TokenTTLHours = 24
	}
	if cfg.Pool.DefaultBuyin == "" {
		cfg.Pool.DefaultBuyin = "2"
	}
	if cfg.Pool.DefaultLegs <= 0 {
		cfg.Pool.DefaultLegs = 3
	}
	if cfg.Pool.DefaultWinningLegs <= 0 {
		cfg.Pool.DefaultWinningLegs = 5
	}
	if cfg.Pool.SubmissionWindowHours <= 0 {
		cfg.Pool.SubmissionWindowHours = 24
	}
	if cfg.Pool.VotingWindowHours <= 0 {
		cfg.Pool.VotingWindowHours = 12
	}
	if cfg.Notify.WebhookRate <= 0 {
		cfg.Notify.WebhookRate = 5
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 256
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "accapool"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if _, err := decimal.NewFromString(c.Pool.DefaultBuyin); err != nil {
		return fmt.Errorf("pool.default_buyin %q: %w", c.Pool.DefaultBuyin, err)
	}
	return nil
}
