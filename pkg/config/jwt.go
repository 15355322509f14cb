package config

// JWTConfig holds the key used to verify bearer tokens issued by the identity service
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}
