package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Mpesa     MpesaConfig
	Payment   PaymentConfig
	Redis     RedisConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

// MpesaConfig holds the Daraja credentials and endpoints.
type MpesaConfig struct {
	ConsumerKey       string
	ConsumerSecret    string
	OAuthURL          string
	STKPushURL        string
	ShortCode         string
	Passkey           string
	CallbackURL       string
	TransactionType   string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type PaymentConfig struct {
	// GracePeriod is how long a PENDING payment may wait for its callback.
	GracePeriod   time.Duration
	SweepInterval time.Duration
	MaxAttempts   int
}

type RedisConfig struct {
	URL string
}

type WebhookConfig struct {
	Secret string
}

type RateLimitConfig struct {
	RequestsPerMinute float64
	Burst             int
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	setDefaults(v)

	// .env is optional, the environment alone is enough
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	v.AutomaticEnv()

	return configFrom(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "hostel-booking")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)

	v.SetDefault("MPESA_OAUTH_URL", "https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials")
	v.SetDefault("MPESA_STK_PUSH_URL", "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest")
	v.SetDefault("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline")
	v.SetDefault("MPESA_TIMEOUT", "10s")
	v.SetDefault("MPESA_REQUESTS_PER_SECOND", 5)

	v.SetDefault("PAYMENT_GRACE_PERIOD", "5m")
	v.SetDefault("PAYMENT_SWEEP_INTERVAL", "1m")
	v.SetDefault("PAYMENT_MAX_ATTEMPTS", 3)

	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

func configFrom(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name:    v.GetString("APP_NAME"),
			Port:    v.GetString("PORT"),
			Debug:   v.GetBool("DEBUG"),
			LogPath: v.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Mpesa: MpesaConfig{
			ConsumerKey:       v.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret:    v.GetString("MPESA_CONSUMER_SECRET"),
			OAuthURL:          v.GetString("MPESA_OAUTH_URL"),
			STKPushURL:        v.GetString("MPESA_STK_PUSH_URL"),
			ShortCode:         v.GetString("MPESA_SHORTCODE"),
			Passkey:           v.GetString("MPESA_PASSKEY"),
			CallbackURL:       v.GetString("MPESA_CALLBACK_URL"),
			TransactionType:   v.GetString("MPESA_TRANSACTION_TYPE"),
			Timeout:           v.GetDuration("MPESA_TIMEOUT"),
			RequestsPerSecond: v.GetFloat64("MPESA_REQUESTS_PER_SECOND"),
		},
		Payment: PaymentConfig{
			GracePeriod:   v.GetDuration("PAYMENT_GRACE_PERIOD"),
			SweepInterval: v.GetDuration("PAYMENT_SWEEP_INTERVAL"),
			MaxAttempts:   v.GetInt("PAYMENT_MAX_ATTEMPTS"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Webhook: WebhookConfig{
			Secret: v.GetString("MPESA_WEBHOOK_SECRET"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: v.GetFloat64("RATE_LIMIT_PER_MINUTE"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
		},
	}
}
