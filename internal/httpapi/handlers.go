package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/domrealce/storefront/internal/contacts"
	"github.com/domrealce/storefront/internal/orders"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// QuotePrice calcula o preço de um item sem o adicionar ao carrinho
func (s *Server) QuotePrice(c *gin.Context) {
	_, span := s.tracer.Start(c.Request.Context(), "quote_price")
	defer span.End()

	var item catalog.CartItem
	if err := c.ShouldBindJSON(&item); err != nil {
		if apperrors.IsValidation(err) {
			s.writeError(c, span, err)
			return
		}
		badRequest(c, span, err)
		return
	}
	span.SetAttributes(attribute.String("type", string(item.Type)))

	q, err := s.Calculator.Quote(item)
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// GetCart devolve o carrinho da sessão
func (s *Server) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.Carts.Load(c.Request))
}

// AddCartItem recalcula o preço do item e junta-o ao carrinho
func (s *Server) AddCartItem(c *gin.Context) {
	_, span := s.tracer.Start(c.Request.Context(), "add_cart_item")
	defer span.End()

	var item catalog.CartItem
	if err := c.ShouldBindJSON(&item); err != nil {
		if apperrors.IsValidation(err) {
			s.writeError(c, span, err)
			return
		}
		badRequest(c, span, err)
		return
	}

	priced, err := s.Calculator.Reprice(item)
	if err != nil {
		s.writeError(c, span, err)
		return
	}

	current := s.Carts.Load(c.Request)
	line, err := current.AddItem(priced)
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	if err := s.Carts.Save(c.Request, c.Writer, current); err != nil {
		s.writeError(c, span, err)
		return
	}

	span.SetAttributes(attribute.String("item_id", line.ID), attribute.Int("cart_count", current.Count()))
	c.JSON(http.StatusCreated, gin.H{"item": line, "cart": current})
}

type quantityBody struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// UpdateCartItem altera a quantidade de uma linha; zero remove a linha
func (s *Server) UpdateCartItem(c *gin.Context) {
	_, span := s.tracer.Start(c.Request.Context(), "update_cart_item")
	defer span.End()

	var body quantityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, span, err)
		return
	}

	current := s.Carts.Load(c.Request)
	if err := current.UpdateQuantity(c.Param("id"), *body.Quantity); err != nil {
		s.writeError(c, span, err)
		return
	}
	if err := s.Carts.Save(c.Request, c.Writer, current); err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

// RemoveCartItem remove uma linha do carrinho
func (s *Server) RemoveCartItem(c *gin.Context) {
	_, span := s.tracer.Start(c.Request.Context(), "remove_cart_item")
	defer span.End()

	current := s.Carts.Load(c.Request)
	current.RemoveItem(c.Param("id"))
	if err := s.Carts.Save(c.Request, c.Writer, current); err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

type checkoutBody struct {
	orders.Customer
	MetodoPagamento orders.MetodoPagamento `json:"metodoPagamento" binding:"required"`
	// Total é o valor mostrado ao cliente; apenas indicativo
	Total *decimal.Decimal `json:"total"`
}

// Checkout cria a encomenda a partir do carrinho da sessão
func (s *Server) Checkout(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "checkout")
	defer span.End()

	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, span, err)
		return
	}

	current := s.Carts.Load(c.Request)
	span.SetAttributes(
		attribute.String("metodo_pagamento", string(body.MetodoPagamento)),
		attribute.Int("cart_count", current.Count()),
	)

	result, err := s.Orders.Checkout(ctx, orders.CheckoutRequest{
		Customer:        body.Customer,
		MetodoPagamento: body.MetodoPagamento,
		Items:           current.Items,
		ClientTotal:     body.Total,
	})

	// a encomenda existe mesmo quando o gateway falhou, por isso o carrinho é esvaziado nos dois casos
	if result != nil && result.Order != nil {
		span.SetAttributes(attribute.String("order_id", result.Order.ID))
		current.Clear()
		if saveErr := s.Carts.Save(c.Request, c.Writer, current); saveErr != nil {
			s.logger.Error("failed to clear cart after checkout", zap.Error(saveErr))
		}
	}

	if errors.Is(err, apperrors.ErrGatewayUnavailable) && result != nil && result.Order != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":           "payment service unavailable, please try again",
			"numeroEncomenda": result.Order.NumeroEncomenda,
			"order":           result.Order.Public(),
		})
		return
	}
	if err != nil {
		s.writeError(c, span, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":   result.Order.Public(),
		"payment": result.Payment,
	})
}

// RetryPayment pede uma nova referência para uma encomenda por pagar
func (s *Server) RetryPayment(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "retry_payment")
	defer span.End()

	numero := c.Param("numero")
	span.SetAttributes(attribute.String("numero_encomenda", numero))

	result, err := s.Orders.RetryPayment(ctx, numero)
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": result.Order.Public(), "payment": result.Payment})
}

// GetPublicOrder devolve o estado da encomenda visível para o cliente
func (s *Server) GetPublicOrder(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "get_public_order")
	defer span.End()

	order, err := s.Orders.GetOrderByNumber(ctx, c.Param("numero"))
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order.Public())
}

// parseCallbackStatus aceita os estados em português e os sinónimos usados pelo gateway.
// Sem status o callback é uma confirmação de pagamento.
func parseCallbackStatus(raw string) (orders.EstadoPagamento, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pago", "paid", "success":
		return orders.PagamentoPago, true
	case "falhado", "failed", "error", "expired":
		return orders.PagamentoFalhado, true
	}
	return "", false
}

// PaymentCallback recebe a notificação do gateway. Responde sempre 200 para o gateway não repetir o envio.
func (s *Server) PaymentCallback(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "payment_callback")
	defer span.End()

	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("requestId")
	}
	span.SetAttributes(attribute.String("reference", reference), attribute.String("status", c.Query("status")))

	if !s.validCallbackKey(c.Query("key")) {
		s.logger.Warn("payment callback with invalid key", zap.String("reference", reference), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	status, ok := parseCallbackStatus(c.Query("status"))
	if !ok {
		s.logger.Warn("payment callback with unknown status", zap.String("reference", reference), zap.String("status", c.Query("status")))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	order, err := s.Orders.HandlePaymentCallback(ctx, orders.PaymentCallback{Reference: reference, Status: status})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("❌ Failed to process payment callback", zap.String("reference", reference), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	span.SetAttributes(attribute.String("order_id", order.ID))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GetPageConfig devolve todas as configurações de uma página, indexadas por secção e elemento
func (s *Server) GetPageConfig(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "get_page_config")
	defer span.End()

	configs, err := s.PageConfigs.ListPage(ctx, c.Param("page"))
	if err != nil {
		s.writeError(c, span, err)
		return
	}

	sections := map[string]map[string]string{}
	for _, cfg := range configs {
		if sections[cfg.Section] == nil {
			sections[cfg.Section] = map[string]string{}
		}
		sections[cfg.Section][cfg.Element] = cfg.Resolve("")
	}
	c.JSON(http.StatusOK, gin.H{"page": c.Param("page"), "sections": sections, "items": configs})
}

// SubmitContact grava uma mensagem do formulário de contacto
func (s *Server) SubmitContact(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "submit_contact")
	defer span.End()

	var form contacts.Contact
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, span, err)
		return
	}

	saved, err := s.Contacts.Submit(ctx, form)
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": saved.ID, "message": "Mensagem recebida"})
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login autentica um administrador e devolve um token Bearer
func (s *Server) Login(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "login")
	defer span.End()

	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, span, err)
		return
	}

	token, expires, err := s.Auth.Login(ctx, body.Username, body.Password)
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expires})
}
