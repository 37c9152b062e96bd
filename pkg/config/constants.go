package config

const (
	// EnvPrefix is passed to envconfig; variables already carry the
	// CHARMFORGE_ prefix in their tags so this stays empty.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
