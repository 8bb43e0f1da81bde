package orders

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/domrealce/storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// Totals agrupa os valores financeiros de uma encomenda. Total = Subtotal + Envio + IVA.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Envio    decimal.Decimal `json:"envio"`
	IVA      decimal.Decimal `json:"iva"`
	Total    decimal.Decimal `json:"total"`
}

// PricingPolicy define IVA e portes aplicados no checkout
type PricingPolicy struct {
	VATRate     decimal.Decimal
	ShippingFee decimal.Decimal
	// FreeShippingFrom isenta os portes quando o subtotal o atinge; zero desativa a isenção
	FreeShippingFrom decimal.Decimal
}

// DefaultPricingPolicy aplica IVA a 23% e portes de 5 EUR
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		VATRate:     decimal.RequireFromString("0.23"),
		ShippingFee: decimal.NewFromInt(5),
	}
}

// Shipping devolve os portes para um subtotal
func (p PricingPolicy) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if p.FreeShippingFrom.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingFrom) {
		return decimal.Zero
	}
	return p.ShippingFee
}

// Compute calcula portes, IVA e total a partir do subtotal.
// O IVA incide sobre subtotal + portes e é arredondado ao cêntimo; o total é a soma exata.
func (p PricingPolicy) Compute(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	envio := p.Shipping(subtotal).Round(2)
	iva := subtotal.Add(envio).Mul(p.VATRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Envio:    envio,
		IVA:      iva,
		Total:    subtotal.Add(envio).Add(iva),
	}
}

// Subtotal soma precoTotal * quantity dos itens
func Subtotal(items []catalog.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNumber gera um número de encomenda no formato DR-AAAAMMDD-XXXXXX
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	base := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			// rand.Reader não falha em plataformas suportadas
			panic(err)
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return "DR-" + now.Format("20060102") + "-" + string(suffix)
}
