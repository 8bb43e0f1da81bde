package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/domrealce/storefront/internal/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// maxNumberAttempts limita as tentativas de alocar um número de encomenda livre
const maxNumberAttempts = 5

// Notifier envia as notificações por email associadas a uma encomenda
type Notifier interface {
	OrderCreated(ctx context.Context, order *Order) error
	OrderPaid(ctx context.Context, order *Order) error
	OrderShipped(ctx context.Context, order *Order) error
}

// CheckoutRequest contém os dados do formulário de checkout e o snapshot do carrinho
type CheckoutRequest struct {
	Customer        Customer
	MetodoPagamento MetodoPagamento
	Items           []catalog.CartItem
	// ClientTotal é apenas indicativo; o total é sempre recalculado no servidor
	ClientTotal *decimal.Decimal
}

// CheckoutResult é a encomenda criada e, se o gateway respondeu, a referência de pagamento
type CheckoutResult struct {
	Order   *Order
	Payment *payments.Reference
}

// PaymentCallback é a notificação assíncrona do gateway
type PaymentCallback struct {
	Reference string
	Status    EstadoPagamento
}

// OrderUseCase contém a lógica de negócio das encomendas
type OrderUseCase struct {
	repository Repository
	calculator *catalog.Calculator
	gateway    payments.Gateway
	notifier   Notifier
	policy     PricingPolicy
	logger     *zap.Logger

	newNumber func(time.Time) string
	now       func() time.Time

	ordersCreated    metric.Int64Counter
	paymentCallbacks metric.Int64Counter
	stateTransitions metric.Int64Counter
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	repository Repository,
	calculator *catalog.Calculator,
	gateway payments.Gateway,
	notifier Notifier,
	policy PricingPolicy,
	logger *zap.Logger,
) *OrderUseCase {
	meter := otel.Meter("github.com/domrealce/storefront/internal/orders")
	ordersCreated, _ := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders created at checkout"))
	paymentCallbacks, _ := meter.Int64Counter("payment_callbacks_total",
		metric.WithDescription("Payment gateway callbacks by outcome"))
	stateTransitions, _ := meter.Int64Counter("order_state_transitions_total",
		metric.WithDescription("Fulfillment state transitions"))

	return &OrderUseCase{
		repository:       repository,
		calculator:       calculator,
		gateway:          gateway,
		notifier:         notifier,
		policy:           policy,
		logger:           logger,
		newNumber:        NewOrderNumber,
		now:              time.Now,
		ordersCreated:    ordersCreated,
		paymentCallbacks: paymentCallbacks,
		stateTransitions: stateTransitions,
	}
}

// Quote recalcula o carrinho e devolve os totais que o checkout aplicaria
func (uc *OrderUseCase) Quote(items []catalog.CartItem) ([]catalog.CartItem, Totals, error) {
	if len(items) == 0 {
		return nil, Totals{}, apperrors.NewValidationError("itens", "cart is empty")
	}

	priced := make([]catalog.CartItem, 0, len(items))
	for i, item := range items {
		p, err := uc.calculator.Reprice(item)
		if err != nil {
			var ve *apperrors.ValidationError
			if errors.As(err, &ve) {
				ve.Field = strings.TrimSuffix(fmt.Sprintf("itens[%d].%s", i, ve.Field), ".")
			}
			return nil, Totals{}, err
		}
		priced = append(priced, p)
	}
	return priced, uc.policy.Compute(Subtotal(priced)), nil
}

// Checkout cria uma encomenda a partir do carrinho e pede uma referência de pagamento.
// Se o gateway falhar, a encomenda fica gravada e o erro devolvido contém ErrGatewayUnavailable.
func (uc *OrderUseCase) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := req.Customer.Validate(); err != nil {
		return nil, err
	}
	if !req.MetodoPagamento.Valid() {
		return nil, apperrors.NewValidationError("metodoPagamento", "unknown payment method %q", req.MetodoPagamento)
	}
	if req.MetodoPagamento == MetodoMBWay && req.Customer.Telefone == "" {
		return nil, apperrors.NewValidationError("telefoneCliente", "is required for MB WAY payments")
	}

	itens, totals, err := uc.Quote(req.Items)
	if err != nil {
		return nil, err
	}

	if req.ClientTotal != nil && !req.ClientTotal.Equal(totals.Total) {
		uc.logger.Warn("client total differs from server total",
			zap.String("client_total", req.ClientTotal.StringFixed(2)),
			zap.String("server_total", totals.Total.StringFixed(2)))
	}

	order, err := uc.createWithUniqueNumber(ctx, req.Customer, req.MetodoPagamento, itens, totals)
	if err != nil {
		return nil, err
	}

	uc.ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("metodo_pagamento", string(order.MetodoPagamento))))
	uc.logger.Info("✅ Order created",
		zap.String("order_id", order.ID),
		zap.String("numero_encomenda", order.NumeroEncomenda),
		zap.String("total", order.Total.StringFixed(2)))

	if err := uc.notifier.OrderCreated(ctx, order); err != nil {
		uc.logger.Error("failed to send order created notification", zap.String("order_id", order.ID), zap.Error(err))
	}

	result := &CheckoutResult{Order: order}
	ref, err := uc.requestPayment(ctx, order)
	if err != nil {
		return result, err
	}
	result.Payment = ref
	return result, nil
}

func (uc *OrderUseCase) createWithUniqueNumber(ctx context.Context, customer Customer, metodo MetodoPagamento, itens []catalog.CartItem, totals Totals) (*Order, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		order := NewOrder(uuid.New().String(), uc.newNumber(uc.now()), customer, metodo, itens, totals)

		err := uc.repository.CreateOrder(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		uc.logger.Warn("order number collision, retrying",
			zap.String("numero_encomenda", order.NumeroEncomenda),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("failed to allocate order number after %d attempts: %w", maxNumberAttempts, apperrors.ErrConflict)
}

// RetryPayment devolve a referência de uma encomenda ainda por pagar. Uma nova
// referência só é pedida quando a encomenda não tem nenhuma ou a atual expirou,
// para que um pagamento feito com a referência anterior continue a ser reconhecido.
func (uc *OrderUseCase) RetryPayment(ctx context.Context, numero string) (*CheckoutResult, error) {
	order, err := uc.repository.GetOrderByNumber(ctx, numero)
	if err != nil {
		return nil, err
	}
	if order.EstadoPagamento != PagamentoPendente || order.Estado != EstadoPendente {
		return nil, &apperrors.InvalidTransitionError{
			From:   string(order.EstadoPagamento),
			To:     string(PagamentoPendente),
			Reason: "payment is no longer pending",
		}
	}

	result := &CheckoutResult{Order: order}
	if current := order.storedPayment(); current != nil && !paymentExpired(current, uc.now()) {
		result.Payment = current
		return result, nil
	}

	ref, err := uc.requestPayment(ctx, order)
	if err != nil {
		return result, err
	}
	result.Payment = ref
	return result, nil
}

func (uc *OrderUseCase) requestPayment(ctx context.Context, order *Order) (*payments.Reference, error) {
	ref, err := uc.gateway.CreateReference(ctx, payments.Request{
		OrderID:     order.NumeroEncomenda,
		Method:      payments.Method(order.MetodoPagamento),
		Amount:      order.Total,
		Email:       order.Email,
		Phone:       order.Telefone,
		Description: "Encomenda " + order.NumeroEncomenda,
	})
	if err != nil {
		uc.logger.Error("❌ Failed to create payment reference",
			zap.String("order_id", order.ID),
			zap.String("metodo_pagamento", string(order.MetodoPagamento)),
			zap.Error(err))
		return nil, fmt.Errorf("order %s: %w", order.NumeroEncomenda, apperrors.ErrGatewayUnavailable)
	}

	dados, err := encodePaymentData(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment data: %w", err)
	}
	if err := uc.repository.SetPaymentReference(ctx, order.ID, ref.Reference, dados); err != nil {
		uc.logger.Error("❌ Failed to store payment reference", zap.String("order_id", order.ID), zap.Error(err))
		return nil, fmt.Errorf("order %s: failed to store payment reference (%v): %w", order.NumeroEncomenda, err, apperrors.ErrGatewayUnavailable)
	}
	order.ReferenciaIfthenpay = ref.Reference
	order.DadosPagamento = dados
	return ref, nil
}

// HandlePaymentCallback aplica o estado reportado pelo gateway à encomenda da referência.
// Callbacks repetidos não alteram a encomenda nem voltam a enviar notificações.
func (uc *OrderUseCase) HandlePaymentCallback(ctx context.Context, cb PaymentCallback) (*Order, error) {
	if cb.Reference == "" {
		return nil, apperrors.NewValidationError("reference", "is required")
	}
	if !cb.Status.IsTerminal() {
		return nil, apperrors.NewValidationError("status", "unsupported payment status %q", cb.Status)
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := uc.repository.GetOrderByReferenceForUpdate(ctx, tx, cb.Reference)
	if err != nil {
		return nil, err
	}

	outcome, err := order.ApplyPayment(cb.Status, uc.now())
	if err != nil {
		return nil, err
	}
	uc.paymentCallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.String("status", string(cb.Status))))

	switch outcome {
	case PaymentDuplicate:
		uc.logger.Info("ℹ️ [IDEMPOTENCY] Payment callback already applied",
			zap.String("order_id", order.ID), zap.String("reference", cb.Reference))
		return order, nil
	case PaymentConflict:
		uc.logger.Warn("conflicting payment callback ignored",
			zap.String("order_id", order.ID),
			zap.String("current", string(order.EstadoPagamento)),
			zap.String("reported", string(cb.Status)))
		return order, nil
	}

	if err := uc.repository.UpdateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment callback: %w", err)
	}

	uc.logger.Info("✅ Payment status updated",
		zap.String("order_id", order.ID),
		zap.String("estado_pagamento", string(order.EstadoPagamento)),
		zap.String("estado", string(order.Estado)))

	if order.EstadoPagamento == PagamentoPago {
		if err := uc.notifier.OrderPaid(ctx, order); err != nil {
			uc.logger.Error("failed to send order paid notification", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	return order, nil
}

// Transition aplica uma transição de estado pedida pelo back-office
func (uc *OrderUseCase) Transition(ctx context.Context, id string, to Estado) (*Order, error) {
	var from Estado
	order, err := uc.mutate(ctx, id, func(o *Order) error {
		from = o.Estado
		return o.Transition(to, uc.now())
	})
	if err != nil {
		if apperrors.IsInvalidTransition(err) {
			uc.logger.Warn("rejected order transition", zap.String("order_id", id), zap.Error(err))
		}
		return nil, err
	}

	uc.stateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to))))

	if to == EstadoEnviada {
		if err := uc.notifier.OrderShipped(ctx, order); err != nil {
			uc.logger.Error("failed to send order shipped notification", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	return order, nil
}

// UpdateTracking define o código de rastreio da transportadora
func (uc *OrderUseCase) UpdateTracking(ctx context.Context, id, codigo string) (*Order, error) {
	return uc.mutate(ctx, id, func(o *Order) error {
		o.CodigoRastreio = codigo
		o.UpdatedAt = uc.now()
		return nil
	})
}

// UpdateNotes substitui as notas internas, nunca mostradas ao cliente
func (uc *OrderUseCase) UpdateNotes(ctx context.Context, id, notas string) (*Order, error) {
	return uc.mutate(ctx, id, func(o *Order) error {
		o.NotasInternas = notas
		o.UpdatedAt = uc.now()
		return nil
	})
}

// mutate carrega a encomenda com lock, aplica fn e grava o resultado na mesma transação
func (uc *OrderUseCase) mutate(ctx context.Context, id string, fn func(*Order) error) (*Order, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(order); err != nil {
		return nil, err
	}
	if err := uc.repository.UpdateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}
	return order, nil
}

// GetOrder busca uma encomenda pelo ID
func (uc *OrderUseCase) GetOrder(ctx context.Context, id string) (*Order, error) {
	return uc.repository.GetOrder(ctx, id)
}

// GetOrderByNumber busca uma encomenda pelo número visível ao cliente
func (uc *OrderUseCase) GetOrderByNumber(ctx context.Context, numero string) (*Order, error) {
	return uc.repository.GetOrderByNumber(ctx, numero)
}

// ListOrders lista encomendas, por omissão 20 por página
func (uc *OrderUseCase) ListOrders(ctx context.Context, filter ListFilter) ([]*Order, int, error) {
	if filter.Estado != "" && !filter.Estado.Valid() {
		return nil, 0, apperrors.NewValidationError("estado", "unknown order state %q", filter.Estado)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.repository.ListOrders(ctx, filter)
}
