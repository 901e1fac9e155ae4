package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`

	JWTSecret      string        `env:"JWT_SECRET"`
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"1h"`
	CookieSecure   bool          `env:"COOKIE_SECURE" envDefault:"false"`

	AirtableAPIKey           string        `env:"AIRTABLE_API_KEY,required,notEmpty"`
	AirtableBaseID           string        `env:"AIRTABLE_BASE_ID,required,notEmpty"`
	AirtableBaseURL          string        `env:"AIRTABLE_BASE_URL" envDefault:"https://api.airtable.com/v0"`
	AirtableRequestsTable    string        `env:"AIRTABLE_REQUESTS_TABLE" envDefault:"Babysitter Requests"`
	AirtableBabysittersTable string        `env:"AIRTABLE_BABYSITTERS_TABLE" envDefault:"Babysitters"`
	AirtableReadRetries      int           `env:"AIRTABLE_READ_RETRIES" envDefault:"1"`
	AirtableCacheTTL         time.Duration `env:"AIRTABLE_CACHE_TTL" envDefault:"5m"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	VerifyMaxAttempts       int           `env:"VERIFY_MAX_ATTEMPTS" envDefault:"5"`
	VerifyWindow            time.Duration `env:"VERIFY_WINDOW" envDefault:"10m"`
	FreePlanBabysitterLimit int           `env:"FREE_PLAN_BABYSITTER_LIMIT" envDefault:"3"`
	PublicRatePerMinute     int           `env:"PUBLIC_RATE_PER_MINUTE" envDefault:"60"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
