package orders

import (
	"encoding/json"
	"time"

	"github.com/domrealce/storefront/internal/payments"
)

// paymentData é o documento guardado em dadosPagamento: a referência emitida
// e a resposta original do gateway
type paymentData struct {
	payments.Reference
	Gateway json.RawMessage `json:"gateway,omitempty"`
}

func encodePaymentData(ref *payments.Reference) (json.RawMessage, error) {
	return json.Marshal(paymentData{Reference: *ref, Gateway: ref.Raw})
}

// storedPayment reconstrói a referência atual da encomenda. Devolve nil se a
// encomenda ainda não tem referência.
func (o *Order) storedPayment() *payments.Reference {
	if o.ReferenciaIfthenpay == "" {
		return nil
	}

	var data paymentData
	if err := json.Unmarshal(o.DadosPagamento, &data); err != nil || data.Reference.Reference != o.ReferenciaIfthenpay {
		// dados ilegíveis: a referência continua válida, mas sem validade conhecida
		return &payments.Reference{
			Method:    payments.Method(o.MetodoPagamento),
			Reference: o.ReferenciaIfthenpay,
			Amount:    o.Total,
			Raw:       o.DadosPagamento,
		}
	}
	ref := data.Reference
	ref.Raw = data.Gateway
	return &ref
}

// paymentExpired indica se a referência já não pode ser paga. Referências sem
// validade nunca expiram.
func paymentExpired(ref *payments.Reference, now time.Time) bool {
	return ref.ExpiresAt != nil && !now.Before(*ref.ExpiresAt)
}
