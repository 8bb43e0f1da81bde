package orders

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/domrealce/storefront/internal/catalog"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestCompute_DefaultPolicy(t *testing.T) {
	// Arrange
	policy := DefaultPricingPolicy()

	// Act
	totals := policy.Compute(dec("120.00"))

	// Assert
	assert.Equal(t, "120.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", totals.Envio.StringFixed(2))
	assert.Equal(t, "28.75", totals.IVA.StringFixed(2))
	assert.Equal(t, "153.75", totals.Total.StringFixed(2))
}

func TestCompute_FreeShipping(t *testing.T) {
	policy := DefaultPricingPolicy()
	policy.FreeShippingFrom = dec("100")

	assert.True(t, policy.Compute(dec("100")).Envio.IsZero())
	assert.Equal(t, "5", policy.Compute(dec("99.99")).Envio.String())
}

func TestCompute_RoundsVATToCents(t *testing.T) {
	totals := DefaultPricingPolicy().Compute(dec("10.01"))

	// (10.01 + 5) * 0.23 = 3.4523
	assert.Equal(t, "3.45", totals.IVA.String())
	assert.Equal(t, "18.46", totals.Total.String())
}

func TestSubtotal_UsesQuantity(t *testing.T) {
	calc := catalog.NewCalculator(nil)
	item, err := calc.Reprice(catalog.NewCanvasItem(catalog.Canvas{CanvasName: "Lisboa", Tamanho: "30x40"}))
	require.NoError(t, err)
	item.Quantity = 3

	assert.Equal(t, "89.70", Subtotal([]catalog.CartItem{item}).StringFixed(2))
}

func TestNewOrderNumber_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^DR-20260310-[A-HJ-NP-Z2-9]{6}$`)
	now := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		n := NewOrderNumber(now)
		assert.Regexp(t, pattern, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestTotalsInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	policy := DefaultPricingPolicy()
	policy.FreeShippingFrom = dec("150")

	properties.Property("total equals subtotal + envio + iva, all in cents", prop.ForAll(
		func(cents int64) bool {
			totals := policy.Compute(decimal.New(cents, -2))
			sum := totals.Subtotal.Add(totals.Envio).Add(totals.IVA)
			return totals.Total.Equal(sum) &&
				totals.IVA.Equal(totals.IVA.Round(2)) &&
				!totals.IVA.IsNegative()
		},
		gen.Int64Range(0, 10_000_000),
	))

	properties.TestingRun(t)
}
