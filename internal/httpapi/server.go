// Package httpapi expõe a loja por HTTP com gin.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/domrealce/storefront/internal/auth"
	"github.com/domrealce/storefront/internal/cart"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/domrealce/storefront/internal/contacts"
	"github.com/domrealce/storefront/internal/orders"
	"github.com/domrealce/storefront/internal/pageconfig"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OrderUseCaseInterface define a interface para o use case de encomendas
type OrderUseCaseInterface interface {
	Quote(items []catalog.CartItem) ([]catalog.CartItem, orders.Totals, error)
	Checkout(ctx context.Context, req orders.CheckoutRequest) (*orders.CheckoutResult, error)
	RetryPayment(ctx context.Context, numero string) (*orders.CheckoutResult, error)
	HandlePaymentCallback(ctx context.Context, cb orders.PaymentCallback) (*orders.Order, error)
	Transition(ctx context.Context, id string, to orders.Estado) (*orders.Order, error)
	UpdateTracking(ctx context.Context, id, codigo string) (*orders.Order, error)
	UpdateNotes(ctx context.Context, id, notas string) (*orders.Order, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	GetOrderByNumber(ctx context.Context, numero string) (*orders.Order, error)
	ListOrders(ctx context.Context, filter orders.ListFilter) ([]*orders.Order, int, error)
}

// PageConfigUseCaseInterface define a interface para o use case de configurações de página
type PageConfigUseCaseInterface interface {
	ListPage(ctx context.Context, page string) ([]pageconfig.PageConfig, error)
	UpdateConfig(ctx context.Context, page, section, element, value string) (*pageconfig.PageConfig, error)
	UpsertConfig(ctx context.Context, cfg pageconfig.PageConfig) (*pageconfig.PageConfig, error)
	DeleteConfig(ctx context.Context, page, section, element string) error
}

// ContactUseCaseInterface define a interface para o formulário de contacto
type ContactUseCaseInterface interface {
	Submit(ctx context.Context, form contacts.Contact) (*contacts.Contact, error)
	List(ctx context.Context, limit, offset int) ([]contacts.Contact, error)
}

// Dependencies agrupa o que o Server precisa
type Dependencies struct {
	Orders      OrderUseCaseInterface
	PageConfigs PageConfigUseCaseInterface
	Contacts    ContactUseCaseInterface
	Auth        *auth.Service
	Calculator  *catalog.Calculator
	Carts       *cart.SessionStore
	RateLimiter *RateLimiter
	// CallbackKey é a chave anti-phishing combinada com o gateway
	CallbackKey string
	Logger      *zap.Logger
	Tracer      trace.Tracer
}

// Server contém os handlers HTTP
type Server struct {
	Dependencies
	logger *zap.Logger
	tracer trace.Tracer
}

// NewServer cria uma nova instância de Server
func NewServer(deps Dependencies) *Server {
	return &Server{Dependencies: deps, logger: deps.Logger, tracer: deps.Tracer}
}

// Register monta todas as rotas no router
func (s *Server) Register(r gin.IRouter) {
	r.GET("/health", s.HealthCheck)

	api := r.Group("/api")
	api.POST("/pricing/quote", s.QuotePrice)

	api.GET("/cart", s.GetCart)
	api.POST("/cart/items", s.AddCartItem)
	api.PATCH("/cart/items/:id", s.UpdateCartItem)
	api.DELETE("/cart/items/:id", s.RemoveCartItem)

	limited := api.Group("")
	if s.RateLimiter != nil {
		limited.Use(s.RateLimiter.Middleware())
	}
	limited.POST("/checkout", s.Checkout)
	limited.POST("/orders/:numero/payment", s.RetryPayment)
	limited.POST("/contacts", s.SubmitContact)
	limited.POST("/auth/login", s.Login)

	api.GET("/orders/:numero", s.GetPublicOrder)
	api.GET("/payments/callback", s.PaymentCallback)
	api.GET("/config/:page", s.GetPageConfig)

	admin := api.Group("/admin", auth.RequireRole(s.Auth, auth.RoleAdmin))
	admin.GET("/orders", s.ListOrders)
	admin.GET("/orders/:id", s.GetOrder)
	admin.POST("/orders/:id/transition", s.TransitionOrder)
	admin.PATCH("/orders/:id", s.PatchOrder)
	admin.PUT("/config/:page/:section/:element", s.PutPageConfig)
	admin.DELETE("/config/:page/:section/:element", s.DeletePageConfig)
	admin.GET("/contacts", s.ListContacts)
}

// HealthCheck verifica a saúde do serviço
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "storefront",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// validCallbackKey compara a chave anti-phishing em tempo constante
func (s *Server) validCallbackKey(key string) bool {
	if s.CallbackKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.CallbackKey)) == 1
}
