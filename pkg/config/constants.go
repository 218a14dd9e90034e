package config

// EnvPrefix is the envconfig prefix for all PixelMart settings.
const EnvPrefix = "pixelmart"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "PIXELMART_DB_DSN"
	EnvDBHost = "PIXELMART_DB_HOST"
	EnvDBUser = "PIXELMART_DB_USER"
	EnvDBName = "PIXELMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
