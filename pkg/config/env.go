package config

const EnvPrefix = "DIGIMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv               = "DIGIMART_APP_ENV"
	EnvPort                 = "DIGIMART_APP_PORT"
	EnvDBDSN                = "DIGIMART_DB_DSN"
	EnvDBHost               = "DIGIMART_DB_HOST"
	EnvDBUser               = "DIGIMART_DB_USER"
	EnvDBName               = "DIGIMART_DB_NAME"
	EnvRedisURL             = "DIGIMART_REDIS_URL"
	EnvJWTSecret            = "DIGIMART_JWT_SECRET"
	EnvJWTIssuer            = "DIGIMART_JWT_ISSUER"
	EnvGCPProjectID         = "DIGIMART_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic    = "DIGIMART_PUBSUB_ORDERS_TOPIC"
	EnvPubSubPayoutsTopic   = "DIGIMART_PUBSUB_PAYOUTS_TOPIC"
	EnvCheckoutDedupWindow  = "DIGIMART_CHECKOUT_DEDUP_WINDOW"
	EnvCheckoutFeeBps       = "DIGIMART_CHECKOUT_PLATFORM_FEE_BPS"
	EnvSquareEnv            = "DIGIMART_SQUARE_ENV"
	EnvStripeEnv            = "DIGIMART_STRIPE_ENV"
	EnvPayoutReconcileAfter = "DIGIMART_PAYOUT_RECONCILE_AFTER"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
