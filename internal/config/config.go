package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           int
	CORSAllowedOrigins []string

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	KafkaBrokerURL          string
	KafkaOrderEventsTopic   string
	KafkaPaymentEventsTopic string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration
	OutboxBatchSize    int

	Shop struct {
		ShippingCost      int64
		Currency          string
		OrderNumberPrefix string
		TransactionPrefix string
		MaxLineQuantity   int
		ReservationTTL    time.Duration
		ExpirySweepEvery  time.Duration
	}

	CinetPay struct {
		BaseURL         string
		APIKey          string
		SiteID          string
		NotifyURL       string
		ReturnURL       string
		CancelURL       string
		Lang            string
		Channels        string
		CustomerCountry string
		Timeout         time.Duration
	}
}

// LoadConfig reads the environment, after loading envFile when it exists.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8080)
	cfg.CORSAllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})

	cfg.DBConfig.Host = getEnvOrDefault("CHECKOUT_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("CHECKOUT_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("CHECKOUT_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("CHECKOUT_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("CHECKOUT_DB_NAME", "checkout_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("CHECKOUT_DB_SSLMODE", "disable")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaOrderEventsTopic = getEnvOrDefault("KAFKA_ORDER_EVENTS_TOPIC", "order_events")
	cfg.KafkaPaymentEventsTopic = getEnvOrDefault("KAFKA_PAYMENT_EVENTS_TOPIC", "payment_events")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 5*time.Second)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 50)

	cfg.Shop.ShippingCost = getEnvAsInt64("SHOP_SHIPPING_COST", 2000)
	cfg.Shop.Currency = getEnvOrDefault("SHOP_CURRENCY", "XOF")
	cfg.Shop.OrderNumberPrefix = getEnvOrDefault("SHOP_ORDER_PREFIX", "KKN")
	cfg.Shop.TransactionPrefix = getEnvOrDefault("SHOP_TRANSACTION_PREFIX", "KKN")
	cfg.Shop.MaxLineQuantity = getEnvAsInt("SHOP_MAX_LINE_QUANTITY", 100)
	cfg.Shop.ReservationTTL = getEnvAsDuration("RESERVATION_TTL", 0)
	cfg.Shop.ExpirySweepEvery = getEnvAsDuration("RESERVATION_SWEEP_INTERVAL", 5*time.Minute)

	cfg.CinetPay.BaseURL = strings.TrimRight(getEnvOrDefault("CINETPAY_BASE_URL", "https://api-checkout.cinetpay.com/v2"), "/")
	cfg.CinetPay.APIKey = getEnvOrDefault("CINETPAY_API_KEY", "")
	cfg.CinetPay.SiteID = getEnvOrDefault("CINETPAY_SITE_ID", "")
	cfg.CinetPay.NotifyURL = getEnvOrDefault("CINETPAY_NOTIFY_URL", "http://localhost:8080/api/payments/notify")
	cfg.CinetPay.ReturnURL = getEnvOrDefault("CINETPAY_RETURN_URL", "http://localhost:5173/payment/return")
	cfg.CinetPay.CancelURL = getEnvOrDefault("CINETPAY_CANCEL_URL", "http://localhost:5173/payment/cancel")
	cfg.CinetPay.Lang = getEnvOrDefault("CINETPAY_LANG", "fr")
	cfg.CinetPay.Channels = getEnvOrDefault("CINETPAY_CHANNELS", "ALL")
	cfg.CinetPay.CustomerCountry = getEnvOrDefault("CINETPAY_CUSTOMER_COUNTRY", "BF")
	cfg.CinetPay.Timeout = getEnvAsDuration("CINETPAY_TIMEOUT", 15*time.Second)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Shop.ShippingCost < 0 {
		return fmt.Errorf("SHOP_SHIPPING_COST must not be negative, got %d", c.Shop.ShippingCost)
	}
	if c.Shop.MaxLineQuantity <= 0 {
		return fmt.Errorf("SHOP_MAX_LINE_QUANTITY must be positive, got %d", c.Shop.MaxLineQuantity)
	}
	if c.CinetPay.Timeout <= 0 {
		return fmt.Errorf("CINETPAY_TIMEOUT must be positive, got %s", c.CinetPay.Timeout)
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	return nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnvOrDefault(key, strconv.FormatInt(defaultValue, 10))
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
