package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Razorpay      RazorpayConfig
	ObjectStore   ObjectStoreConfig
	Orders        OrdersConfig
	Tracking      TrackingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KLINIC_APP_ENV" required:"true"`
	Port         string `envconfig:"KLINIC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KLINIC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KLINIC_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"KLINIC_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"KLINIC_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KLINIC_DB_DSN"`
	Driver string `envconfig:"KLINIC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KLINIC_DB_HOST"`
	LegacyPort     int    `envconfig:"KLINIC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KLINIC_DB_USER"`
	LegacyPassword string `envconfig:"KLINIC_DB_PASSWORD"`
	LegacyName     string `envconfig:"KLINIC_DB_NAME"`
	LegacySSLMode  string `envconfig:"KLINIC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KLINIC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KLINIC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KLINIC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KLINIC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"KLINIC_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL            string        `envconfig:"KLINIC_REDIS_URL" required:"true"`
	Address        string        `envconfig:"KLINIC_REDIS_ADDR"`
	Password       string        `envconfig:"KLINIC_REDIS_PASSWORD"`
	DB             int           `envconfig:"KLINIC_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"KLINIC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"KLINIC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"KLINIC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"KLINIC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"KLINIC_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"KLINIC_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KLINIC_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KLINIC_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"KLINIC_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"KLINIC_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KLINIC_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KLINIC_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KLINIC_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KLINIC_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KLINIC_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KLINIC_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"KLINIC_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"KLINIC_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"KLINIC_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"KLINIC_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"KLINIC_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KLINIC_AUTO_MIGRATE" default:"false"`
	Tracking    bool `envconfig:"KLINIC_FEATURE_TRACKING" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"KLINIC_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KLINIC_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KLINIC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KLINIC_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"KLINIC_PUBSUB_ORDERS_TOPIC" default:"klinic-order-events"`
	AnalyticsSubscription string `envconfig:"KLINIC_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"klinic-order-analytics"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"KLINIC_BIGQUERY_DATASET" default:"klinic"`
	OrderEventsTable string `envconfig:"KLINIC_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"KLINIC_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"KLINIC_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"KLINIC_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"KLINIC_OUTBOX_RETENTION" default:"168h"`
}

type RazorpayConfig struct {
	KeyID     string        `envconfig:"KLINIC_RAZORPAY_KEY_ID"`
	KeySecret string        `envconfig:"KLINIC_RAZORPAY_KEY_SECRET"`
	BaseURL   string        `envconfig:"KLINIC_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Currency  string        `envconfig:"KLINIC_RAZORPAY_CURRENCY" default:"INR"`
	Timeout   time.Duration `envconfig:"KLINIC_RAZORPAY_TIMEOUT" default:"10s"`
}

type ObjectStoreConfig struct {
	Endpoint        string        `envconfig:"KLINIC_OBJECT_STORE_ENDPOINT"`
	Region          string        `envconfig:"KLINIC_OBJECT_STORE_REGION" default:"auto"`
	AccessKeyID     string        `envconfig:"KLINIC_OBJECT_STORE_ACCESS_KEY_ID"`
	SecretAccessKey string        `envconfig:"KLINIC_OBJECT_STORE_SECRET_ACCESS_KEY"`
	Bucket          string        `envconfig:"KLINIC_OBJECT_STORE_BUCKET"`
	PublicBaseURL   string        `envconfig:"KLINIC_OBJECT_STORE_PUBLIC_BASE_URL"`
	UploadURLExpiry time.Duration `envconfig:"KLINIC_OBJECT_STORE_UPLOAD_URL_EXPIRY" default:"15m"`
	MaxUploadMB     int           `envconfig:"KLINIC_OBJECT_STORE_MAX_UPLOAD_MB" default:"10"`
}

// Enabled reports whether enough settings are present to build a client.
func (o ObjectStoreConfig) Enabled() bool {
	return o.Bucket != "" && o.AccessKeyID != "" && o.SecretAccessKey != ""
}

type OrdersConfig struct {
	AssignmentNudgeAfter time.Duration `envconfig:"KLINIC_ORDERS_ASSIGNMENT_NUDGE_AFTER" default:"2h"`
	CronInterval         time.Duration `envconfig:"KLINIC_ORDERS_CRON_INTERVAL" default:"5m"`
}

type TrackingConfig struct {
	Channel string `envconfig:"KLINIC_TRACKING_CHANNEL" default:"order-status"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
