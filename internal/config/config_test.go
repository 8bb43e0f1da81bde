package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_USER", "DATABASE_PASSWORD", "DATABASE_HOST", "DATABASE_PORT", "DATABASE_NAME",
		"VAT_RATE", "SHIPPING_FEE", "FREE_SHIPPING_FROM", "IFTHENPAY_TIMEOUT"} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	// Arrange
	clearEnv(t)

	// Act
	cfg, err := FromEnv()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0.23", cfg.Pricing.VATRate.String())
	assert.Equal(t, "5", cfg.Pricing.ShippingFee.String())
	assert.True(t, cfg.Pricing.FreeShippingFrom.IsZero())
	assert.Equal(t, 10*time.Second, cfg.IfthenPay.Timeout)
	assert.Equal(t, "host=postgres port=5432 user=root password=pass dbname=domrealce sslmode=disable", cfg.Database.DSN())
}

func TestFromEnv_Overrides(t *testing.T) {
	// Arrange
	t.Setenv("PORT", "9090")
	t.Setenv("VAT_RATE", "0.06")
	t.Setenv("SHIPPING_FEE", "7.50")
	t.Setenv("FREE_SHIPPING_FROM", "150")
	t.Setenv("IFTHENPAY_MB_KEY", "MB-123")
	t.Setenv("IFTHENPAY_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("SECURE_COOKIES", "true")

	// Act
	cfg, err := FromEnv()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "0.06", cfg.Pricing.VATRate.String())
	assert.Equal(t, "7.5", cfg.Pricing.ShippingFee.String())
	assert.Equal(t, "150", cfg.Pricing.FreeShippingFrom.String())
	assert.Equal(t, "MB-123", cfg.IfthenPay.MultibancoKey)
	assert.Equal(t, 3*time.Second, cfg.IfthenPay.Timeout)
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
	assert.True(t, cfg.SecureCookies)
}

func TestFromEnv_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"VAT_RATE":          "1.5",
		"SHIPPING_FEE":      "-1",
		"RATE_LIMIT_BURST":  "many",
		"IFTHENPAY_TIMEOUT": "ten",
		"SECURE_COOKIES":    "sim",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)

			_, err := FromEnv()

			assert.Error(t, err)
		})
	}
}

func TestValidate_RequiresSecrets(t *testing.T) {
	cfg := &Config{SessionSecret: "short"}
	assert.Error(t, cfg.Validate())

	cfg.SessionSecret = "0123456789abcdef0123456789abcdef"
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestPriceTable_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wallpaper:\n  basePerM2: \"25.00\"\n"), 0o600))

	table, err := (&Config{PricingFile: path}).PriceTable()

	require.NoError(t, err)
	assert.Equal(t, "25", table.WallpaperBase.String())
}

func TestPriceTable_Default(t *testing.T) {
	table, err := (&Config{}).PriceTable()

	require.NoError(t, err)
	assert.Equal(t, "20", table.WallpaperBase.String())
}
