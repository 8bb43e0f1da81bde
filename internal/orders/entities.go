// Package orders implementa as encomendas: checkout, ciclo de vida e callbacks de pagamento.
package orders

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// Estado é o estado de preparação/entrega de uma encomenda
type Estado string

const (
	EstadoPendente    Estado = "pendente"
	EstadoPaga        Estado = "paga"
	EstadoProcessando Estado = "processando"
	EstadoEnviada     Estado = "enviada"
	EstadoEntregue    Estado = "entregue"
	EstadoCancelada   Estado = "cancelada"
)

func (e Estado) Valid() bool {
	switch e {
	case EstadoPendente, EstadoPaga, EstadoProcessando, EstadoEnviada, EstadoEntregue, EstadoCancelada:
		return true
	}
	return false
}

// IsTerminal reporta se nenhuma transição é possível a partir deste estado
func (e Estado) IsTerminal() bool {
	return e == EstadoEntregue || e == EstadoCancelada
}

// requiresPayment reporta se o estado só pode ser atingido com o pagamento confirmado
func (e Estado) requiresPayment() bool {
	switch e {
	case EstadoPaga, EstadoProcessando, EstadoEnviada, EstadoEntregue:
		return true
	}
	return false
}

// EstadoPagamento é o estado do pagamento, definido pelo callback do gateway
type EstadoPagamento string

const (
	PagamentoPendente EstadoPagamento = "pendente"
	PagamentoPago     EstadoPagamento = "pago"
	PagamentoFalhado  EstadoPagamento = "falhado"
)

func (p EstadoPagamento) Valid() bool {
	return p == PagamentoPendente || p == PagamentoPago || p == PagamentoFalhado
}

// IsTerminal reporta se o pagamento já foi resolvido
func (p EstadoPagamento) IsTerminal() bool {
	return p == PagamentoPago || p == PagamentoFalhado
}

// MetodoPagamento representa os métodos de pagamento aceites
type MetodoPagamento string

const (
	MetodoMBWay      MetodoPagamento = "mbway"
	MetodoMultibanco MetodoPagamento = "multibanco"
	MetodoPayshop    MetodoPagamento = "payshop"
	MetodoCreditCard MetodoPagamento = "creditcard"
)

func (m MetodoPagamento) Valid() bool {
	switch m {
	case MetodoMBWay, MetodoMultibanco, MetodoPayshop, MetodoCreditCard:
		return true
	}
	return false
}

// transitions lista os estados seguintes permitidos a partir de cada estado
var transitions = map[Estado][]Estado{
	EstadoPendente:    {EstadoPaga, EstadoCancelada},
	EstadoPaga:        {EstadoProcessando, EstadoCancelada},
	EstadoProcessando: {EstadoEnviada, EstadoCancelada},
	EstadoEnviada:     {EstadoEntregue},
}

// CanTransition verifica se a encomenda pode passar de from para to, dado o estado do pagamento.
// Nenhum estado a partir de "paga" pode ser atingido sem o pagamento confirmado.
func CanTransition(from, to Estado, pagamento EstadoPagamento) error {
	if !to.Valid() {
		return apperrors.NewValidationError("estado", "unknown order state %q", to)
	}
	if from.IsTerminal() {
		return &apperrors.InvalidTransitionError{From: string(from), To: string(to), Reason: "order is in a terminal state"}
	}

	allowed := false
	for _, next := range transitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return &apperrors.InvalidTransitionError{From: string(from), To: string(to)}
	}

	if to.requiresPayment() && pagamento != PagamentoPago {
		return &apperrors.InvalidTransitionError{From: string(from), To: string(to), Reason: "payment not confirmed"}
	}
	return nil
}

// Customer contém os dados do cliente e da entrega
type Customer struct {
	Nome         string `json:"nomeCliente"`
	Email        string `json:"emailCliente"`
	Telefone     string `json:"telefoneCliente,omitempty"`
	Morada       string `json:"morada"`
	CodigoPostal string `json:"codigoPostal"`
	Cidade       string `json:"cidade"`
	NIF          string `json:"nif,omitempty"`
}

var (
	postalCodePattern = regexp.MustCompile(`^\d{4}-\d{3}$`)
	nifPattern        = regexp.MustCompile(`^\d{9}$`)
	phonePattern      = regexp.MustCompile(`^\+?[0-9 ]{9,16}$`)
)

// Validate verifica os campos obrigatórios e os formatos portugueses de código postal e NIF
func (c Customer) Validate() error {
	if strings.TrimSpace(c.Nome) == "" {
		return apperrors.NewValidationError("nomeCliente", "is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return apperrors.NewValidationError("emailCliente", "is not a valid email address")
	}
	if c.Telefone != "" && !phonePattern.MatchString(c.Telefone) {
		return apperrors.NewValidationError("telefoneCliente", "is not a valid phone number")
	}
	if strings.TrimSpace(c.Morada) == "" {
		return apperrors.NewValidationError("morada", "is required")
	}
	if !postalCodePattern.MatchString(c.CodigoPostal) {
		return apperrors.NewValidationError("codigoPostal", "must have the format 0000-000")
	}
	if strings.TrimSpace(c.Cidade) == "" {
		return apperrors.NewValidationError("cidade", "is required")
	}
	if c.NIF != "" && !nifPattern.MatchString(c.NIF) {
		return apperrors.NewValidationError("nif", "must have 9 digits")
	}
	return nil
}

// Order representa uma encomenda no sistema.
// Itens é um snapshot do carrinho no momento do checkout e nunca é recalculado depois.
type Order struct {
	ID              string `json:"id"`
	NumeroEncomenda string `json:"numeroEncomenda"`
	Customer

	Itens    []catalog.CartItem `json:"itens"`
	Subtotal decimal.Decimal    `json:"subtotal"`
	Envio    decimal.Decimal    `json:"envio"`
	IVA      decimal.Decimal    `json:"iva"`
	Total    decimal.Decimal    `json:"total"`

	Estado          Estado          `json:"estado"`
	EstadoPagamento EstadoPagamento `json:"estadoPagamento"`
	MetodoPagamento MetodoPagamento `json:"metodoPagamento"`

	ReferenciaIfthenpay string          `json:"referenciaIfthenpay,omitempty"`
	DadosPagamento      json.RawMessage `json:"dadosPagamento,omitempty"`

	CodigoRastreio string `json:"codigoRastreio,omitempty"`
	NotasInternas  string `json:"notasInternas,omitempty"`

	DataPagamento *time.Time `json:"dataPagamento,omitempty"`
	DataEnvio     *time.Time `json:"dataEnvio,omitempty"`
	DataEntrega   *time.Time `json:"dataEntrega,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// NewOrder cria uma nova encomenda pendente
func NewOrder(id, numero string, customer Customer, metodo MetodoPagamento, itens []catalog.CartItem, totals Totals) *Order {
	now := time.Now()
	return &Order{
		ID:              id,
		NumeroEncomenda: numero,
		Customer:        customer,
		Itens:           itens,
		Subtotal:        totals.Subtotal,
		Envio:           totals.Envio,
		IVA:             totals.IVA,
		Total:           totals.Total,
		Estado:          EstadoPendente,
		EstadoPagamento: PagamentoPendente,
		MetodoPagamento: metodo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Transition move a encomenda para o estado to, carimbando dataEnvio e dataEntrega uma única vez
func (o *Order) Transition(to Estado, now time.Time) error {
	if err := CanTransition(o.Estado, to, o.EstadoPagamento); err != nil {
		return err
	}

	o.Estado = to
	switch to {
	case EstadoEnviada:
		if o.DataEnvio == nil {
			o.DataEnvio = &now
		}
	case EstadoEntregue:
		if o.DataEntrega == nil {
			o.DataEntrega = &now
		}
	}
	o.UpdatedAt = now
	return nil
}

// PaymentOutcome descreve o efeito de um callback de pagamento
type PaymentOutcome string

const (
	// PaymentApplied indica que o estado do pagamento mudou
	PaymentApplied PaymentOutcome = "applied"
	// PaymentDuplicate indica um callback repetido com o mesmo estado
	PaymentDuplicate PaymentOutcome = "duplicate"
	// PaymentConflict indica um callback contraditório para um pagamento já resolvido
	PaymentConflict PaymentOutcome = "conflict"
)

// ApplyPayment aplica o estado reportado pelo gateway.
// Um pagamento já resolvido nunca é alterado, o que torna callbacks repetidos inofensivos.
func (o *Order) ApplyPayment(status EstadoPagamento, now time.Time) (PaymentOutcome, error) {
	if !status.IsTerminal() {
		return "", apperrors.NewValidationError("estado", "unsupported payment status %q", status)
	}

	if o.EstadoPagamento.IsTerminal() {
		if o.EstadoPagamento == status {
			return PaymentDuplicate, nil
		}
		return PaymentConflict, nil
	}

	o.EstadoPagamento = status
	if status == PagamentoPago {
		if o.DataPagamento == nil {
			o.DataPagamento = &now
		}
		// uma encomenda cancelada mantém o estado; o reembolso é tratado fora do sistema
		if o.Estado == EstadoPendente {
			o.Estado = EstadoPaga
		}
	}
	o.UpdatedAt = now
	return PaymentApplied, nil
}

// PublicOrder é a vista da encomenda mostrada ao cliente, sem campos internos
type PublicOrder struct {
	NumeroEncomenda string             `json:"numeroEncomenda"`
	Itens           []catalog.CartItem `json:"itens"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Envio           decimal.Decimal    `json:"envio"`
	IVA             decimal.Decimal    `json:"iva"`
	Total           decimal.Decimal    `json:"total"`
	Estado          Estado             `json:"estado"`
	EstadoPagamento EstadoPagamento    `json:"estadoPagamento"`
	MetodoPagamento MetodoPagamento    `json:"metodoPagamento"`
	CodigoRastreio  string             `json:"codigoRastreio,omitempty"`
	DataPagamento   *time.Time         `json:"dataPagamento,omitempty"`
	DataEnvio       *time.Time         `json:"dataEnvio,omitempty"`
	DataEntrega     *time.Time         `json:"dataEntrega,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// Public devolve a vista pública da encomenda
func (o *Order) Public() PublicOrder {
	return PublicOrder{
		NumeroEncomenda: o.NumeroEncomenda,
		Itens:           o.Itens,
		Subtotal:        o.Subtotal,
		Envio:           o.Envio,
		IVA:             o.IVA,
		Total:           o.Total,
		Estado:          o.Estado,
		EstadoPagamento: o.EstadoPagamento,
		MetodoPagamento: o.MetodoPagamento,
		CodigoRastreio:  o.CodigoRastreio,
		DataPagamento:   o.DataPagamento,
		DataEnvio:       o.DataEnvio,
		DataEntrega:     o.DataEntrega,
		CreatedAt:       o.CreatedAt,
	}
}
