package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/domrealce/storefront/internal/auth"
	"github.com/domrealce/storefront/internal/cart"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/domrealce/storefront/internal/contacts"
	"github.com/domrealce/storefront/internal/orders"
	"github.com/domrealce/storefront/internal/pageconfig"
	"github.com/domrealce/storefront/internal/payments"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	// o binário usa números JSON para os valores decimais
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

type MockOrderUseCase struct {
	mock.Mock
}

func (m *MockOrderUseCase) Quote(items []catalog.CartItem) ([]catalog.CartItem, orders.Totals, error) {
	args := m.Called(items)
	return args.Get(0).([]catalog.CartItem), args.Get(1).(orders.Totals), args.Error(2)
}

func (m *MockOrderUseCase) Checkout(ctx context.Context, req orders.CheckoutRequest) (*orders.CheckoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.CheckoutResult), args.Error(1)
}

func (m *MockOrderUseCase) RetryPayment(ctx context.Context, numero string) (*orders.CheckoutResult, error) {
	args := m.Called(ctx, numero)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.CheckoutResult), args.Error(1)
}

func (m *MockOrderUseCase) HandlePaymentCallback(ctx context.Context, cb orders.PaymentCallback) (*orders.Order, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderUseCase) Transition(ctx context.Context, id string, to orders.Estado) (*orders.Order, error) {
	args := m.Called(ctx, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderUseCase) UpdateTracking(ctx context.Context, id, codigo string) (*orders.Order, error) {
	args := m.Called(ctx, id, codigo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderUseCase) UpdateNotes(ctx context.Context, id, notas string) (*orders.Order, error) {
	args := m.Called(ctx, id, notas)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderUseCase) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderUseCase) GetOrderByNumber(ctx context.Context, numero string) (*orders.Order, error) {
	args := m.Called(ctx, numero)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderUseCase) ListOrders(ctx context.Context, filter orders.ListFilter) ([]*orders.Order, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*orders.Order), args.Int(1), args.Error(2)
}

type MockPageConfigUseCase struct {
	mock.Mock
}

func (m *MockPageConfigUseCase) ListPage(ctx context.Context, page string) ([]pageconfig.PageConfig, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pageconfig.PageConfig), args.Error(1)
}

func (m *MockPageConfigUseCase) UpdateConfig(ctx context.Context, page, section, element, value string) (*pageconfig.PageConfig, error) {
	args := m.Called(ctx, page, section, element, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pageconfig.PageConfig), args.Error(1)
}

func (m *MockPageConfigUseCase) UpsertConfig(ctx context.Context, cfg pageconfig.PageConfig) (*pageconfig.PageConfig, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pageconfig.PageConfig), args.Error(1)
}

func (m *MockPageConfigUseCase) DeleteConfig(ctx context.Context, page, section, element string) error {
	return m.Called(ctx, page, section, element).Error(0)
}

type MockContactUseCase struct {
	mock.Mock
}

func (m *MockContactUseCase) Submit(ctx context.Context, form contacts.Contact) (*contacts.Contact, error) {
	args := m.Called(ctx, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contacts.Contact), args.Error(1)
}

func (m *MockContactUseCase) List(ctx context.Context, limit, offset int) ([]contacts.Contact, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]contacts.Contact), args.Error(1)
}

// staticUsers devolve sempre o mesmo administrador
type staticUsers struct {
	user *auth.User
}

func (s staticUsers) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	if s.user == nil || username != s.user.Username {
		return nil, apperrors.ErrNotFound
	}
	return s.user, nil
}

const testCallbackKey = "anti-phishing-key"

type fixture struct {
	router   *gin.Engine
	orders   *MockOrderUseCase
	configs  *MockPageConfigUseCase
	contacts *MockContactUseCase
	auth     *auth.Service
}

func newFixture(t *testing.T, limiter *RateLimiter) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3gredo"), bcrypt.MinCost)
	require.NoError(t, err)
	users := staticUsers{user: &auth.User{ID: "u-1", Username: "admin", PasswordHash: string(hash), Role: auth.RoleAdmin}}

	f := &fixture{
		orders:   new(MockOrderUseCase),
		configs:  new(MockPageConfigUseCase),
		contacts: new(MockContactUseCase),
		auth:     auth.NewService(users, []byte("jwt-secret-for-tests")),
	}

	server := NewServer(Dependencies{
		Orders:      f.orders,
		PageConfigs: f.configs,
		Contacts:    f.contacts,
		Auth:        f.auth,
		Calculator:  catalog.NewCalculator(nil),
		Carts:       cart.NewSessionStore(cart.NewCookieStore([]byte("session-secret-for-tests-0123456"), false), "storefront"),
		RateLimiter: limiter,
		CallbackKey: testCallbackKey,
		Logger:      zap.NewNop(),
		Tracer:      noop.NewTracerProvider().Tracer(""),
	})

	f.router = gin.New()
	server.Register(f.router)
	return f
}

func (f *fixture) do(method, path string, body any, cookies []*http.Cookie, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := f.auth.Login(context.Background(), "admin", "s3gredo")
	require.NoError(t, err)
	return "Bearer " + token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func canvasBody() map[string]any {
	return map[string]any{
		"type":        "quadros-canvas",
		"canvasName":  "Ribeira",
		"canvasImage": "/img/ribeira.jpg",
		"tamanho":     "30x40",
		"quantity":    2,
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.NewValidationError("email", "is required"), http.StatusBadRequest},
		{"invalid transition", &apperrors.InvalidTransitionError{From: "entregue", To: "cancelada"}, http.StatusConflict},
		{"not found", fmt.Errorf("order x: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"conflict", apperrors.ErrConflict, http.StatusConflict},
		{"gateway", fmt.Errorf("order DR-1: %w", apperrors.ErrGatewayUnavailable), http.StatusBadGateway},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestQuotePrice(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("wallpaper", func(t *testing.T) {
		// Arrange
		body := map[string]any{
			"type":        "papel-parede",
			"textureName": "Betão",
			"acabamento":  "mate",
			"larguraCm":   200,
			"alturaCm":    300,
		}

		// Act
		w := f.do(http.MethodPost, "/api/pricing/quote", body, nil)

		// Assert
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		out := decode(t, w)
		assert.EqualValues(t, 120, out["precoTotal"])
	})

	t.Run("unknown product type is a validation error", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/pricing/quote", map[string]any{"type": "moldura"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "type", decode(t, w)["field"])
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		body := map[string]any{"type": "papel-parede", "acabamento": "mate", "larguraCm": 0, "alturaCm": 100}

		w := f.do(http.MethodPost, "/api/pricing/quote", body, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "larguraCm", decode(t, w)["field"])
	})
}

func TestCartFlow(t *testing.T) {
	// Arrange
	f := newFixture(t, nil)

	// Act: adicionar com um preço forjado pelo cliente
	body := canvasBody()
	body["precoTotal"] = 0.01
	added := f.do(http.MethodPost, "/api/cart/items", body, nil)

	// Assert
	require.Equal(t, http.StatusCreated, added.Code, added.Body.String())
	cookies := added.Result().Cookies()
	require.NotEmpty(t, cookies)

	out := decode(t, added)
	item := out["item"].(map[string]any)
	assert.EqualValues(t, 29.9, item["precoTotal"])
	assert.EqualValues(t, 59.8, out["cart"].(map[string]any)["total"])
	assert.NotEmpty(t, item["id"])

	// a sessão guarda o carrinho entre pedidos
	got := f.do(http.MethodGet, "/api/cart", nil, cookies)
	require.Equal(t, http.StatusOK, got.Code)
	items := decode(t, got)["items"].([]any)
	require.Len(t, items, 1)

	id := item["id"].(string)
	patched := f.do(http.MethodPatch, "/api/cart/items/"+id, map[string]any{"quantity": 3}, cookies)
	require.Equal(t, http.StatusOK, patched.Code, patched.Body.String())
	updated := decode(t, patched)
	line := updated["items"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 3, line["quantity"])
	assert.EqualValues(t, 89.7, updated["total"])

	missing := f.do(http.MethodPatch, "/api/cart/items/does-not-exist", map[string]any{"quantity": 1}, cookies)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	noQuantity := f.do(http.MethodPatch, "/api/cart/items/"+id, map[string]any{}, cookies)
	assert.Equal(t, http.StatusBadRequest, noQuantity.Code)

	removed := f.do(http.MethodDelete, "/api/cart/items/"+id, nil, patched.Result().Cookies())
	require.Equal(t, http.StatusOK, removed.Code)
	assert.Empty(t, decode(t, removed)["items"])
}

func addToCart(t *testing.T, f *fixture) []*http.Cookie {
	t.Helper()
	w := f.do(http.MethodPost, "/api/cart/items", canvasBody(), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return w.Result().Cookies()
}

func checkoutPayload() map[string]any {
	return map[string]any{
		"nomeCliente":     "Ana Silva",
		"emailCliente":    "ana@example.pt",
		"telefoneCliente": "912345678",
		"morada":          "Rua das Flores 10",
		"codigoPostal":    "4050-262",
		"cidade":          "Porto",
		"metodoPagamento": "multibanco",
		"total":           79.70,
	}
}

func placedOrder() *orders.Order {
	return &orders.Order{
		ID:              "o-1",
		NumeroEncomenda: "DR-20260310-AB12",
		Total:           decimal.RequireFromString("79.70"),
		Estado:          orders.EstadoPendente,
		EstadoPagamento: orders.PagamentoPendente,
		NotasInternas:   "não mostrar",
	}
}

func TestCheckout_CreatesOrderAndClearsCart(t *testing.T) {
	// Arrange
	f := newFixture(t, nil)
	cookies := addToCart(t, f)

	order := placedOrder()
	ref := &payments.Reference{Method: payments.MethodMultibanco, Entity: "11249", Reference: "123 456 789", Amount: order.Total}
	f.orders.On("Checkout", mock.Anything, mock.MatchedBy(func(req orders.CheckoutRequest) bool {
		return len(req.Items) == 1 &&
			req.Items[0].Quantity == 2 &&
			req.Customer.Cidade == "Porto" &&
			req.ClientTotal != nil && req.ClientTotal.Equal(decimal.RequireFromString("79.7"))
	})).Return(&orders.CheckoutResult{Order: order, Payment: ref}, nil)

	// Act
	w := f.do(http.MethodPost, "/api/checkout", checkoutPayload(), cookies)

	// Assert
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode(t, w)
	public := out["order"].(map[string]any)
	assert.Equal(t, "DR-20260310-AB12", public["numeroEncomenda"])
	assert.NotContains(t, public, "notasInternas")
	assert.Equal(t, "123 456 789", out["payment"].(map[string]any)["referencia"])

	after := f.do(http.MethodGet, "/api/cart", nil, w.Result().Cookies())
	assert.Empty(t, decode(t, after)["items"])
	f.orders.AssertExpectations(t)
}

func TestCheckout_GatewayFailureKeepsOrderNumber(t *testing.T) {
	// Arrange
	f := newFixture(t, nil)
	cookies := addToCart(t, f)
	order := placedOrder()
	f.orders.On("Checkout", mock.Anything, mock.Anything).
		Return(&orders.CheckoutResult{Order: order}, fmt.Errorf("order %s: %w", order.NumeroEncomenda, apperrors.ErrGatewayUnavailable))

	// Act
	w := f.do(http.MethodPost, "/api/checkout", checkoutPayload(), cookies)

	// Assert
	require.Equal(t, http.StatusBadGateway, w.Code)
	out := decode(t, w)
	assert.Equal(t, "DR-20260310-AB12", out["numeroEncomenda"])
	assert.NotContains(t, w.Body.String(), "not found")

	after := f.do(http.MethodGet, "/api/cart", nil, w.Result().Cookies())
	assert.Empty(t, decode(t, after)["items"])
}

func TestCheckout_ValidationErrorNamesField(t *testing.T) {
	f := newFixture(t, nil)
	f.orders.On("Checkout", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewValidationError("itens", "cart is empty"))

	w := f.do(http.MethodPost, "/api/checkout", checkoutPayload(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "itens", decode(t, w)["field"])
}

func TestCheckout_InternalErrorsAreNotLeaked(t *testing.T) {
	f := newFixture(t, nil)
	f.orders.On("Checkout", mock.Anything, mock.Anything).
		Return(nil, errors.New("pq: password authentication failed for user storefront"))

	w := f.do(http.MethodPost, "/api/checkout", checkoutPayload(), addToCart(t, f))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestGetPublicOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.orders.On("GetOrderByNumber", mock.Anything, "DR-20260310-AB12").Return(placedOrder(), nil)
	f.orders.On("GetOrderByNumber", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	found := f.do(http.MethodGet, "/api/orders/DR-20260310-AB12", nil, nil)
	missing := f.do(http.MethodGet, "/api/orders/DR-00000000-XXXX", nil, nil)

	require.Equal(t, http.StatusOK, found.Code)
	assert.NotContains(t, found.Body.String(), "não mostrar")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestRetryPayment_NotPending(t *testing.T) {
	f := newFixture(t, nil)
	f.orders.On("RetryPayment", mock.Anything, "DR-20260310-AB12").
		Return(nil, &apperrors.InvalidTransitionError{From: "paga", To: "pendente", Reason: "payment is no longer pending"})

	w := f.do(http.MethodPost, "/api/orders/DR-20260310-AB12/payment", nil, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPaymentCallback(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(m *MockOrderUseCase)
		wantCalled bool
	}{
		{
			name:  "paid",
			query: "?key=" + testCallbackKey + "&reference=123456789&status=paid",
			setup: func(m *MockOrderUseCase) {
				m.On("HandlePaymentCallback", mock.Anything, orders.PaymentCallback{Reference: "123456789", Status: orders.PagamentoPago}).
					Return(placedOrder(), nil)
			},
			wantCalled: true,
		},
		{
			name:  "mbway request id without status",
			query: "?key=" + testCallbackKey + "&requestId=req-77",
			setup: func(m *MockOrderUseCase) {
				m.On("HandlePaymentCallback", mock.Anything, orders.PaymentCallback{Reference: "req-77", Status: orders.PagamentoPago}).
					Return(placedOrder(), nil)
			},
			wantCalled: true,
		},
		{
			name:  "failed",
			query: "?key=" + testCallbackKey + "&reference=123456789&status=expired",
			setup: func(m *MockOrderUseCase) {
				m.On("HandlePaymentCallback", mock.Anything, orders.PaymentCallback{Reference: "123456789", Status: orders.PagamentoFalhado}).
					Return(placedOrder(), nil)
			},
			wantCalled: true,
		},
		{
			name:  "unknown reference still acknowledged",
			query: "?key=" + testCallbackKey + "&reference=000&status=pago",
			setup: func(m *MockOrderUseCase) {
				m.On("HandlePaymentCallback", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)
			},
			wantCalled: true,
		},
		{
			name:  "wrong key is ignored",
			query: "?key=guess&reference=123456789&status=pago",
			setup: func(m *MockOrderUseCase) {},
		},
		{
			name:  "unknown status is ignored",
			query: "?key=" + testCallbackKey + "&reference=123456789&status=refunded",
			setup: func(m *MockOrderUseCase) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture(t, nil)
			tt.setup(f.orders)

			// Act
			w := f.do(http.MethodGet, "/api/payments/callback"+tt.query, nil, nil)

			// Assert
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, true, decode(t, w)["received"])
			if tt.wantCalled {
				f.orders.AssertExpectations(t)
			} else {
				f.orders.AssertNotCalled(t, "HandlePaymentCallback", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestGetPageConfig_GroupsBySection(t *testing.T) {
	f := newFixture(t, nil)
	f.configs.On("ListPage", mock.Anything, "home").Return([]pageconfig.PageConfig{
		{Key: pageconfig.Key{Page: "home", Section: "hero", Element: "title"}, Type: pageconfig.TypeText, Value: "", DefaultValue: "Default Title"},
		{Key: pageconfig.Key{Page: "home", Section: "hero", Element: "color"}, Type: pageconfig.TypeColor, Value: "#ff0000"},
	}, nil)

	w := f.do(http.MethodGet, "/api/config/home", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	hero := decode(t, w)["sections"].(map[string]any)["hero"].(map[string]any)
	assert.Equal(t, "Default Title", hero["title"])
	assert.Equal(t, "#ff0000", hero["color"])
}

func TestSubmitContact(t *testing.T) {
	f := newFixture(t, nil)
	f.contacts.On("Submit", mock.Anything, mock.MatchedBy(func(c contacts.Contact) bool {
		return c.Email == "rui@example.pt"
	})).Return(&contacts.Contact{ID: "c-1"}, nil)

	w := f.do(http.MethodPost, "/api/contacts", map[string]any{
		"nome": "Rui", "email": "rui@example.pt", "mensagem": "Fazem tamanhos à medida?",
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "c-1", decode(t, w)["id"])
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)

	ok := f.do(http.MethodPost, "/api/auth/login", map[string]any{"username": "admin", "password": "s3gredo"}, nil)
	wrong := f.do(http.MethodPost, "/api/auth/login", map[string]any{"username": "admin", "password": "nope"}, nil)

	require.Equal(t, http.StatusOK, ok.Code)
	assert.NotEmpty(t, decode(t, ok)["token"])
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/admin/orders", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.orders.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
}

func TestAdminListOrders(t *testing.T) {
	// Arrange
	f := newFixture(t, nil)
	f.orders.On("ListOrders", mock.Anything, orders.ListFilter{Estado: orders.EstadoPaga, Limit: 10, Offset: 20}).
		Return([]*orders.Order{placedOrder()}, 31, nil)

	// Act
	w := f.do(http.MethodGet, "/api/admin/orders?estado=paga&limit=10&offset=20", nil, nil, "Authorization", f.adminToken(t))

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.EqualValues(t, 31, out["total"])
	assert.Len(t, out["orders"], 1)
	// o back-office vê as notas internas
	assert.Contains(t, w.Body.String(), "não mostrar")
}

func TestAdminTransitionOrder(t *testing.T) {
	f := newFixture(t, nil)
	token := f.adminToken(t)
	f.orders.On("Transition", mock.Anything, "o-1", orders.EstadoEnviada).Return(placedOrder(), nil)
	f.orders.On("Transition", mock.Anything, "o-1", orders.EstadoCancelada).
		Return(nil, &apperrors.InvalidTransitionError{From: "entregue", To: "cancelada"})

	ok := f.do(http.MethodPost, "/api/admin/orders/o-1/transition", map[string]any{"estado": "enviada"}, nil, "Authorization", token)
	rejected := f.do(http.MethodPost, "/api/admin/orders/o-1/transition", map[string]any{"estado": "cancelada"}, nil, "Authorization", token)
	empty := f.do(http.MethodPost, "/api/admin/orders/o-1/transition", map[string]any{}, nil, "Authorization", token)

	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, http.StatusConflict, rejected.Code)
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestAdminPatchOrder(t *testing.T) {
	f := newFixture(t, nil)
	token := f.adminToken(t)
	updated := placedOrder()
	updated.CodigoRastreio = "RR123456789PT"
	f.orders.On("UpdateTracking", mock.Anything, "o-1", "RR123456789PT").Return(updated, nil)
	f.orders.On("UpdateNotes", mock.Anything, "o-1", "ligar antes").Return(updated, nil)

	w := f.do(http.MethodPatch, "/api/admin/orders/o-1", map[string]any{
		"codigoRastreio": "RR123456789PT",
		"notasInternas":  "ligar antes",
	}, nil, "Authorization", token)
	nothing := f.do(http.MethodPatch, "/api/admin/orders/o-1", map[string]any{}, nil, "Authorization", token)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "RR123456789PT", decode(t, w)["codigoRastreio"])
	assert.Equal(t, http.StatusBadRequest, nothing.Code)
	f.orders.AssertExpectations(t)
}

func TestAdminPutPageConfig(t *testing.T) {
	f := newFixture(t, nil)
	token := f.adminToken(t)
	saved := &pageconfig.PageConfig{Key: pageconfig.Key{Page: "home", Section: "hero", Element: "title"}, Type: pageconfig.TypeText, Value: "Olá"}

	t.Run("value only updates in place", func(t *testing.T) {
		f.configs.On("UpdateConfig", mock.Anything, "home", "hero", "title", "Olá").Return(saved, nil).Once()

		w := f.do(http.MethodPut, "/api/admin/config/home/hero/title", map[string]any{"value": "Olá"}, nil, "Authorization", token)

		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("typed value upserts", func(t *testing.T) {
		f.configs.On("UpsertConfig", mock.Anything, mock.MatchedBy(func(cfg pageconfig.PageConfig) bool {
			return cfg.Key.String() == saved.Key.String() && cfg.Type == pageconfig.TypeColor && cfg.DefaultValue == "#000000"
		})).Return(saved, nil).Once()

		w := f.do(http.MethodPut, "/api/admin/config/home/hero/title", map[string]any{
			"type": "color", "value": "#FFFFFF", "defaultValue": "#000000",
		}, nil, "Authorization", token)

		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		f.configs.On("DeleteConfig", mock.Anything, "home", "hero", "title").Return(nil).Once()

		w := f.do(http.MethodDelete, "/api/admin/config/home/hero/title", nil, nil, "Authorization", token)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	f.configs.AssertExpectations(t)
}

func TestAdminListContacts(t *testing.T) {
	f := newFixture(t, nil)
	f.contacts.On("List", mock.Anything, 50, 0).Return([]contacts.Contact{{ID: "c-1", Nome: "Rui"}}, nil)

	w := f.do(http.MethodGet, "/api/admin/contacts", nil, nil, "Authorization", f.adminToken(t))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["contacts"], 1)
}

func TestRateLimiter_RejectsBurst(t *testing.T) {
	// Arrange
	f := newFixture(t, NewRateLimiter(0.0001, 2))
	f.contacts.On("Submit", mock.Anything, mock.Anything).Return(&contacts.Contact{ID: "c-1"}, nil)
	form := map[string]any{"nome": "Rui", "email": "rui@example.pt", "mensagem": "Olá"}

	// Act
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, f.do(http.MethodPost, "/api/contacts", form, nil).Code)
	}
	// rotas fora do grupo limitado não são afetadas
	health := f.do(http.MethodGet, "/health", nil, nil)

	// Assert
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.limiterFor("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.limiterFor("10.0.0.2")
	rl.evict()

	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}
