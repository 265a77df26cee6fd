package config

import (
	"fmt"
	"os"
)

// Config holds all environment variables for the storefront backend.
type Config struct {
	Port        string
	Environment string

	MongoURI string
	MongoDB  string

	PaystackSecretKey     string
	PaystackBaseURL       string
	PaystackWebhookSecret string
	FrontendURL           string

	JWTSecret     string
	JWTExpireDays int

	RedisURL string

	KafkaBrokers      string
	KafkaPaymentTopic string

	AWSRegion        string
	OrderSNSTopicARN string
	S3Bucket         string
	S3Prefix         string

	SMTPServer     string
	SMTPPort       string
	SMTPEmail      string
	SMTPPassword   string
	SMTPSenderName string
}

// LoadConfig loads environment variables into a Config struct and validates
// the ones the payment flow cannot run without.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("APP_ENV", "development"),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "storefront"),

		PaystackSecretKey:     os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:       getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackWebhookSecret: os.Getenv("PAYSTACK_WEBHOOK_SECRET"),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:3000"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpireDays: 30,

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaPaymentTopic: getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),

		AWSRegion:        getEnv("AWS_REGION", "eu-west-2"),
		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		S3Bucket:         getEnv("AWS_S3_BUCKET", "storefront-media"),
		S3Prefix:         getEnv("AWS_S3_PREFIX", "products/"),

		SMTPServer:     getEnv("SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SMTPEmail:      os.Getenv("SMTP_EMAIL"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SMTPSenderName: getEnv("SMTP_SENDER_NAME", "Storefront"),
	}

	// Paystack signs webhooks with the secret key unless a dedicated
	// webhook secret is configured.
	if cfg.PaystackWebhookSecret == "" {
		cfg.PaystackWebhookSecret = cfg.PaystackSecretKey
	}

	if cfg.MongoURI == "" || cfg.PaystackSecretKey == "" || cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required environment variables (MONGO_URI, PAYSTACK_SECRET_KEY, JWT_SECRET)")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
