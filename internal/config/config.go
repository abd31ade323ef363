package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"10080"`
	CookieSecure         bool   `env:"COOKIE_SECURE" envDefault:"false"`

	PhoneRegion        string        `env:"PHONE_REGION" envDefault:"IR"`
	OTPTTL             time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPRefreshAfter    time.Duration `env:"OTP_REFRESH_AFTER" envDefault:"2m"`
	OTPAllowConcurrent bool          `env:"OTP_ALLOW_CONCURRENT" envDefault:"true"`
	OTPRateWindow      time.Duration `env:"OTP_RATE_WINDOW" envDefault:"10m"`
	OTPRateMax         int           `env:"OTP_RATE_MAX" envDefault:"5"`

	Kavenegar KavenegarConfig `envPrefix:"KAVENEGAR_"`
	VAPID     VAPIDConfig     `envPrefix:"VAPID_"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

// KavenegarConfig se inyecta en el sender de SMS.
type KavenegarConfig struct {
	APIKey   string        `env:"API_KEY"`
	Template string        `env:"TEMPLATE" envDefault:"pushnotificationserver"`
	BaseURL  string        `env:"BASE_URL" envDefault:"https://api.kavenegar.com/v1"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// VAPIDConfig se inyecta en el dispatcher de web push.
type VAPIDConfig struct {
	PublicKey  string `env:"PUBLIC_KEY"`
	PrivateKey string `env:"PRIVATE_KEY"`
	Subject    string `env:"SUBJECT"`
	TTLSeconds int    `env:"TTL_SECONDS" envDefault:"86400"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
