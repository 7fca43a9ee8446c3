package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Cart     CartConfig
	Auth     AuthConfig
	JWT      JWTConfig
	DB       DBConfig
	Redis    RedisConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that only matter for the selected backend and
// auth provider.
func (c *Config) Validate() error {
	switch c.Cart.Backend {
	case CartBackendMemory:
	case CartBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or %s is required for the redis cart backend", EnvRedisURL, EnvRedisAddr)
		}
	case CartBackendSQL:
		if err := c.DB.ensureDSN(); err != nil {
			return err
		}
	case CartBackendFirestore:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required for the firestore cart backend", EnvGCPProjectID)
		}
	default:
		return fmt.Errorf("unsupported cart backend %q", c.Cart.Backend)
	}

	switch c.Auth.Provider {
	case AuthProviderJWT:
		if c.JWT.Secret == "" || c.JWT.Issuer == "" {
			return fmt.Errorf("%s and %s are required for the jwt auth provider", EnvJWTSecret, EnvJWTIssuer)
		}
	case AuthProviderFirebase:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required for the firebase auth provider", EnvGCPProjectID)
		}
	default:
		return fmt.Errorf("unsupported auth provider %q", c.Auth.Provider)
	}

	if c.PubSub.CartTopic != "" && strings.TrimSpace(c.GCP.ProjectID) == "" {
		return fmt.Errorf("%s is required when %s is set", EnvGCPProjectID, EnvPubSubCartTopic)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type CartConfig struct {
	Backend        string        `envconfig:"STOREFRONT_CART_BACKEND" default:"redis"`
	KeyNamespace   string        `envconfig:"STOREFRONT_CART_KEY_NAMESPACE"`
	TTL            time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"0"`
	SessionIdleTTL time.Duration `envconfig:"STOREFRONT_CART_SESSION_IDLE_TTL" default:"30m"`
	SweepInterval  time.Duration `envconfig:"STOREFRONT_CART_SWEEP_INTERVAL" default:"1m"`
}

type AuthConfig struct {
	Provider string `envconfig:"STOREFRONT_AUTH_PROVIDER" default:"jwt"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID           string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsFile     string `envconfig:"STOREFRONT_GCP_CREDENTIALS_FILE"`
	FirestoreCollection string `envconfig:"STOREFRONT_FIRESTORE_COLLECTION" default:"kv"`
}

type PubSubConfig struct {
	CartTopic string `envconfig:"STOREFRONT_PUBSUB_CART_TOPIC"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
