// Package config lê a configuração da loja a partir de variáveis de ambiente e de um .env opcional.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/domrealce/storefront/internal/catalog"
	"github.com/domrealce/storefront/internal/orders"
	"github.com/domrealce/storefront/internal/payments"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Database contém os parâmetros de ligação ao PostgreSQL
type Database struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// DSN devolve a connection string no formato chave=valor aceite por pgx e lib/pq
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name,
	)
}

// Config agrupa toda a configuração do serviço
type Config struct {
	Port     string
	Database Database

	SessionSecret string
	JWTSecret     string
	SecureCookies bool
	AdminEmail    string

	// AdminUsername e AdminPassword criam o primeiro administrador no arranque, se ainda não existir
	AdminUsername string
	AdminPassword string

	PricingFile string
	Pricing     orders.PricingPolicy

	IfthenPay   payments.Config
	CallbackKey string

	OTLPEndpoint string
	ServiceName  string
	LogLevel     string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load carrega o .env se existir e lê as variáveis de ambiente
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv lê a configuração apenas das variáveis de ambiente
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Database: Database{
			User:     getEnv("DATABASE_USER", "root"),
			Password: getEnv("DATABASE_PASSWORD", "pass"),
			Host:     getEnv("DATABASE_HOST", "postgres"),
			Port:     getEnv("DATABASE_PORT", "5432"),
			Name:     getEnv("DATABASE_NAME", "domrealce"),
		},
		SessionSecret: os.Getenv("SESSION_SECRET"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "geral@domrealce.pt"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		PricingFile:   os.Getenv("PRICING_FILE"),
		IfthenPay: payments.Config{
			BaseURL:       getEnv("IFTHENPAY_BASE_URL", "https://api.ifthenpay.com"),
			MultibancoKey: os.Getenv("IFTHENPAY_MB_KEY"),
			MBWayKey:      os.Getenv("IFTHENPAY_MBWAY_KEY"),
			PayshopKey:    os.Getenv("IFTHENPAY_PAYSHOP_KEY"),
			CreditCardKey: os.Getenv("IFTHENPAY_CCARD_KEY"),
			SuccessURL:    os.Getenv("IFTHENPAY_SUCCESS_URL"),
			ErrorURL:      os.Getenv("IFTHENPAY_ERROR_URL"),
			CancelURL:     os.Getenv("IFTHENPAY_CANCEL_URL"),
		},
		CallbackKey:  os.Getenv("IFTHENPAY_ANTI_PHISHING_KEY"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		ServiceName:  getEnv("SERVICE_NAME", "domrealce-storefront"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SecureCookies, err = getBool("SECURE_COOKIES", false); err != nil {
		return nil, err
	}
	if cfg.IfthenPay.Timeout, err = getDuration("IFTHENPAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.IfthenPay.RetryCount, err = getInt("IFTHENPAY_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.IfthenPay.PayshopValidityDays, err = getInt("IFTHENPAY_PAYSHOP_DAYS", 3); err != nil {
		return nil, err
	}
	if cfg.IfthenPay.MultibancoExpiryDay, err = getInt("IFTHENPAY_MB_EXPIRY_DAYS", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 1); err != nil {
		return nil, err
	}

	policy := orders.DefaultPricingPolicy()
	if policy.VATRate, err = getDecimal("VAT_RATE", policy.VATRate); err != nil {
		return nil, err
	}
	if policy.ShippingFee, err = getDecimal("SHIPPING_FEE", policy.ShippingFee); err != nil {
		return nil, err
	}
	if policy.FreeShippingFrom, err = getDecimal("FREE_SHIPPING_FROM", decimal.Zero); err != nil {
		return nil, err
	}
	if policy.VATRate.IsNegative() || policy.VATRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("VAT_RATE must be in [0, 1), got %s", policy.VATRate)
	}
	if policy.ShippingFee.IsNegative() {
		return nil, fmt.Errorf("SHIPPING_FEE must not be negative")
	}
	cfg.Pricing = policy

	return cfg, nil
}

// Validate verifica os segredos obrigatórios em produção
func (c *Config) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must have at least 32 characters")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must have at least 32 characters")
	}
	return nil
}

// PriceTable carrega a tabela de preços de PRICING_FILE, ou a tabela embutida
func (c *Config) PriceTable() (*catalog.PriceTable, error) {
	if c.PricingFile == "" {
		return catalog.DefaultPriceTable(), nil
	}
	return catalog.LoadPriceTable(c.PricingFile)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
