package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	CartBackendMemory    = "memory"
	CartBackendRedis     = "redis"
	CartBackendSQL       = "sql"
	CartBackendFirestore = "firestore"
)

const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvPort            = "STOREFRONT_APP_PORT"
	EnvCartBackend     = "STOREFRONT_CART_BACKEND"
	EnvCartTTL         = "STOREFRONT_CART_TTL"
	EnvAuthProvider    = "STOREFRONT_AUTH_PROVIDER"
	EnvJWTSecret       = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer       = "STOREFRONT_JWT_ISSUER"
	EnvDBDSN           = "STOREFRONT_DB_DSN"
	EnvDBDriver        = "STOREFRONT_DB_DRIVER"
	EnvDBHost          = "STOREFRONT_DB_HOST"
	EnvDBUser          = "STOREFRONT_DB_USER"
	EnvDBName          = "STOREFRONT_DB_NAME"
	EnvRedisURL        = "STOREFRONT_REDIS_URL"
	EnvRedisAddr       = "STOREFRONT_REDIS_ADDR"
	EnvGCPProjectID    = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubCartTopic = "STOREFRONT_PUBSUB_CART_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
