package config

const (
	EnvPrefix = "KLINIC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "KLINIC_APP_ENV"
	EnvPort                   = "KLINIC_APP_PORT"
	EnvDBDSN                  = "KLINIC_DB_DSN"
	EnvDBHost                 = "KLINIC_DB_HOST"
	EnvDBUser                 = "KLINIC_DB_USER"
	EnvDBName                 = "KLINIC_DB_NAME"
	EnvRedisURL               = "KLINIC_REDIS_URL"
	EnvJWTSecret              = "KLINIC_JWT_SECRET"
	EnvJWTIssuer              = "KLINIC_JWT_ISSUER"
	EnvJWTExpMins             = "KLINIC_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "KLINIC_REFRESH_TOKEN_TTL_MINUTES"
	EnvRazorpayKeyID          = "KLINIC_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret      = "KLINIC_RAZORPAY_KEY_SECRET"
	EnvObjectStoreBucket      = "KLINIC_OBJECT_STORE_BUCKET"
	EnvPubSubOrdersTopic      = "KLINIC_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
