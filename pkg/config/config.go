package config

import (
	"net"
	"net/url"
	"time"
)

// Config is the full runtime configuration tree. Values resolve from
// built-in defaults first, then environment variables on top.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Queue      QueueConfig      `koanf:"queue"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Worker     WorkerConfig     `koanf:"worker"`
	Server     ServerConfig     `koanf:"server"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	OAuth      OAuthConfig      `koanf:"oauth"`
}

// -----------------------------------------------------------------------------
// Database
// -----------------------------------------------------------------------------

// DatabaseConfig configures the Postgres pool holding areas and credentials.
type DatabaseConfig struct {
	ConnString  string          `koanf:"conn_string"  env:"POSTGRES_CONN_STRING"`
	Host        string          `koanf:"host"         env:"POSTGRES_HOST"`
	Port        string          `koanf:"port"         env:"POSTGRES_PORT"`
	User        string          `koanf:"user"         env:"POSTGRES_USER"`
	Password    SensitiveString `koanf:"password"     env:"POSTGRES_PASSWORD"     sensitive:"true"`
	DBName      string          `koanf:"name"         env:"POSTGRES_DB"`
	SSLMode     string          `koanf:"ssl_mode"     env:"POSTGRES_SSLMODE"`
	AutoMigrate bool            `koanf:"auto_migrate" env:"POSTGRES_AUTO_MIGRATE"`
	PingTimeout time.Duration   `koanf:"ping_timeout" env:"POSTGRES_PING_TIMEOUT"`
}

// DSN returns the connection string, preferring an explicit conn_string over
// the individual fields.
func (d *DatabaseConfig) DSN() string {
	if d.ConnString != "" {
		return d.ConnString
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password.Value()),
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// -----------------------------------------------------------------------------
// Redis / Queue
// -----------------------------------------------------------------------------

type RedisConfig struct {
	Host     string          `koanf:"host"      env:"REDIS_HOST"`
	Port     string          `koanf:"port"      env:"REDIS_PORT"`
	Password SensitiveString `koanf:"password"  env:"REDIS_PASSWORD" sensitive:"true"`
	DB       int             `koanf:"db"        env:"REDIS_DB"`
	PoolSize int             `koanf:"pool_size" env:"REDIS_POOL_SIZE"`
}

func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// Queue driver names accepted by QueueConfig.Driver.
const (
	QueueDriverRedis    = "redis"
	QueueDriverEmbedded = "embedded"
)

// QueueConfig selects the job queue backend and the list it pushes to. The
// embedded driver runs an in-process store so a single node needs no Redis.
type QueueConfig struct {
	Driver  string `koanf:"driver"   env:"QUEUE_DRIVER" validate:"oneof=redis embedded"`
	Name    string `koanf:"name"     env:"QUEUE_NAME"   validate:"required"`
	DataDir string `koanf:"data_dir" env:"QUEUE_DATA_DIR"`
}

// -----------------------------------------------------------------------------
// Scheduler / Worker
// -----------------------------------------------------------------------------

// SchedulerConfig tunes the reconcile loop. The defaults match production
// behavior; tests compress them to keep runtimes short.
type SchedulerConfig struct {
	ReconcileInterval time.Duration `koanf:"reconcile_interval" env:"SCHEDULER_RECONCILE_INTERVAL" validate:"min=1ms"`
	ErrorBackoff      time.Duration `koanf:"error_backoff"      env:"SCHEDULER_ERROR_BACKOFF"      validate:"min=1ms"`
}

type WorkerConfig struct {
	Count     int           `koanf:"count"      env:"WORKER_COUNT" validate:"min=1"`
	IdleSleep time.Duration `koanf:"idle_sleep" env:"WORKER_IDLE_SLEEP" validate:"min=1ms"`
}

// -----------------------------------------------------------------------------
// Server / Monitoring
// -----------------------------------------------------------------------------

// ServerConfig configures the operational HTTP endpoint (health and metrics
// only; there is no CRUD API on this process).
type ServerConfig struct {
	Host string `koanf:"host" env:"SERVER_HOST"`
	Port int    `koanf:"port" env:"SERVER_PORT" validate:"min=1,max=65535"`
}

type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

// -----------------------------------------------------------------------------
// OAuth providers
// -----------------------------------------------------------------------------

// OAuthConfig holds per-provider application settings. Environment variables
// use double-underscore nesting: OAUTH__DISCORD__TOKEN resolves to
// oauth.discord.token.
type OAuthConfig struct {
	Google    ProviderConfig `koanf:"google"`
	Microsoft ProviderConfig `koanf:"microsoft"`
	GitHub    ProviderConfig `koanf:"github"`
	Spotify   ProviderConfig `koanf:"spotify"`
	Discord   ProviderConfig `koanf:"discord"`
}

type ProviderConfig struct {
	ClientID     string          `koanf:"client_id"`
	ClientSecret SensitiveString `koanf:"client_secret" sensitive:"true"`
	RedirectURI  string          `koanf:"redirect_uri"`
	Scopes       []string        `koanf:"scopes"`
	// Token is the provider-level bot or app token used when a component runs
	// without a per-user credential, such as the Discord gateway bot.
	Token SensitiveString `koanf:"token" sensitive:"true"`
}

// Provider returns the settings block for a provider name, or nil when the
// name is unknown.
func (o *OAuthConfig) Provider(name string) *ProviderConfig {
	switch name {
	case "google":
		return &o.Google
	case "microsoft":
		return &o.Microsoft
	case "github":
		return &o.GitHub
	case "spotify":
		return &o.Spotify
	case "discord":
		return &o.Discord
	default:
		return nil
	}
}
