// Package payments contém a interface do gateway de pagamento e um cliente HTTP ao estilo IfthenPay.
package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Method representa um método de pagamento do gateway
type Method string

const (
	MethodMBWay      Method = "mbway"
	MethodMultibanco Method = "multibanco"
	MethodPayshop    Method = "payshop"
	MethodCreditCard Method = "creditcard"
)

// Request é um pedido de referência de pagamento para uma encomenda
type Request struct {
	// OrderID é o identificador enviado ao gateway (o número da encomenda)
	OrderID     string
	Method      Method
	Amount      decimal.Decimal
	Email       string
	Phone       string
	Description string
}

// Reference é o que o cliente precisa para pagar: entidade/referência/valor, ou um URL de pagamento
type Reference struct {
	Method     Method          `json:"metodo"`
	Entity     string          `json:"entidade,omitempty"`
	Reference  string          `json:"referencia"`
	Amount     decimal.Decimal `json:"valor"`
	ExpiresAt  *time.Time      `json:"validade,omitempty"`
	PaymentURL string          `json:"paymentUrl,omitempty"`
	// Raw é a resposta original do gateway, guardada em dadosPagamento
	Raw json.RawMessage `json:"-"`
}

// Gateway cria referências de pagamento. Timeouts e retries são responsabilidade da implementação.
type Gateway interface {
	CreateReference(ctx context.Context, req Request) (*Reference, error)
}
