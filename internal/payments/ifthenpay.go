package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// mbwayValidity é o tempo que o cliente tem para aceitar o pedido MB WAY na aplicação
const mbwayValidity = 4 * time.Minute

// ErrMethodNotConfigured indica que falta a chave do gateway para o método pedido
var ErrMethodNotConfigured = errors.New("payment method not configured")

// Config contém as chaves e URLs do gateway
type Config struct {
	BaseURL             string
	MultibancoKey       string
	MBWayKey            string
	PayshopKey          string
	CreditCardKey       string
	PayshopValidityDays int
	MultibancoExpiryDay int
	SuccessURL          string
	ErrorURL            string
	CancelURL           string
	Timeout             time.Duration
	RetryCount          int
}

// IfthenPayClient implementa Gateway sobre a API REST da IfthenPay
type IfthenPayClient struct {
	client *resty.Client
	cfg    Config
	now    func() time.Time
}

// NewIfthenPayClient cria um cliente com base URL, timeout e retries configurados
func NewIfthenPayClient(cfg Config) *IfthenPayClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.ifthenpay.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PayshopValidityDays == 0 {
		cfg.PayshopValidityDays = 3
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &IfthenPayClient{client: client, cfg: cfg, now: time.Now}
}

// CreateReference pede ao gateway uma referência para o método do pedido
func (c *IfthenPayClient) CreateReference(ctx context.Context, req Request) (*Reference, error) {
	switch req.Method {
	case MethodMultibanco:
		return c.multibanco(ctx, req)
	case MethodMBWay:
		return c.mbway(ctx, req)
	case MethodPayshop:
		return c.payshop(ctx, req)
	case MethodCreditCard:
		return c.creditCard(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported payment method %q", req.Method)
	}
}

type multibancoResponse struct {
	Amount     string `json:"Amount"`
	Entity     string `json:"Entity"`
	ExpiryDate string `json:"ExpiryDate"`
	Message    string `json:"Message"`
	OrderID    string `json:"OrderId"`
	Reference  string `json:"Reference"`
	RequestID  string `json:"RequestId"`
	Status     string `json:"Status"`
}

func (c *IfthenPayClient) multibanco(ctx context.Context, req Request) (*Reference, error) {
	if c.cfg.MultibancoKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotConfigured, req.Method)
	}

	body := map[string]any{
		"mbKey":   c.cfg.MultibancoKey,
		"orderId": req.OrderID,
		"amount":  req.Amount.StringFixed(2),
	}
	if c.cfg.MultibancoExpiryDay > 0 {
		body["expiryDays"] = c.cfg.MultibancoExpiryDay
	}

	var out multibancoResponse
	raw, err := c.post(ctx, "/multibanco/reference/init", body, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "0" {
		return nil, fmt.Errorf("multibanco reference rejected: %s (status %s)", out.Message, out.Status)
	}

	ref := &Reference{
		Method:    MethodMultibanco,
		Entity:    out.Entity,
		Reference: out.Reference,
		Amount:    req.Amount,
		Raw:       raw,
	}
	if t, err := time.Parse("02-01-2006", out.ExpiryDate); err == nil {
		ref.ExpiresAt = &t
	}
	return ref, nil
}

type mbwayResponse struct {
	Amount    string `json:"Amount"`
	Message   string `json:"Message"`
	OrderID   string `json:"OrderId"`
	RequestID string `json:"RequestId"`
	Status    string `json:"Status"`
}

func (c *IfthenPayClient) mbway(ctx context.Context, req Request) (*Reference, error) {
	if c.cfg.MBWayKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotConfigured, req.Method)
	}

	body := map[string]any{
		"mbWayKey":     c.cfg.MBWayKey,
		"orderId":      req.OrderID,
		"amount":       req.Amount.StringFixed(2),
		"mobileNumber": MBWayPhone(req.Phone),
		"email":        req.Email,
		"description":  req.Description,
	}

	var out mbwayResponse
	raw, err := c.post(ctx, "/spg/payment/mbway", body, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "000" {
		return nil, fmt.Errorf("mbway request rejected: %s (status %s)", out.Message, out.Status)
	}

	expires := c.now().Add(mbwayValidity)
	return &Reference{
		Method:    MethodMBWay,
		Reference: out.RequestID,
		Amount:    req.Amount,
		ExpiresAt: &expires,
		Raw:       raw,
	}, nil
}

type payshopResponse struct {
	Code      string `json:"Code"`
	Message   string `json:"Message"`
	Reference string `json:"Reference"`
	RequestID string `json:"RequestId"`
}

func (c *IfthenPayClient) payshop(ctx context.Context, req Request) (*Reference, error) {
	if c.cfg.PayshopKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotConfigured, req.Method)
	}

	expires := c.now().AddDate(0, 0, c.cfg.PayshopValidityDays)
	body := map[string]any{
		"payshopkey": c.cfg.PayshopKey,
		"id":         req.OrderID,
		"valor":      req.Amount.StringFixed(2),
		"validade":   expires.Format("20060102"),
	}

	var out payshopResponse
	raw, err := c.post(ctx, "/payshop/reference/", body, &out)
	if err != nil {
		return nil, err
	}
	if out.Code != "0" {
		return nil, fmt.Errorf("payshop reference rejected: %s (code %s)", out.Message, out.Code)
	}

	return &Reference{
		Method:    MethodPayshop,
		Reference: out.Reference,
		Amount:    req.Amount,
		ExpiresAt: &expires,
		Raw:       raw,
	}, nil
}

type creditCardResponse struct {
	Message    string `json:"Message"`
	PaymentURL string `json:"PaymentUrl"`
	RequestID  string `json:"RequestId"`
	Status     string `json:"Status"`
}

func (c *IfthenPayClient) creditCard(ctx context.Context, req Request) (*Reference, error) {
	if c.cfg.CreditCardKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotConfigured, req.Method)
	}

	body := map[string]any{
		"orderId":    req.OrderID,
		"amount":     req.Amount.StringFixed(2),
		"successUrl": c.cfg.SuccessURL,
		"errorUrl":   c.cfg.ErrorURL,
		"cancelUrl":  c.cfg.CancelURL,
		"language":   "pt",
	}

	var out creditCardResponse
	raw, err := c.post(ctx, "/creditcard/init/"+c.cfg.CreditCardKey, body, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "0" {
		return nil, fmt.Errorf("credit card session rejected: %s (status %s)", out.Message, out.Status)
	}

	return &Reference{
		Method:     MethodCreditCard,
		Reference:  out.RequestID,
		Amount:     req.Amount,
		PaymentURL: out.PaymentURL,
		Raw:        raw,
	}, nil
}

// post envia o pedido e devolve o corpo bruto da resposta, além de o descodificar em out
func (c *IfthenPayClient) post(ctx context.Context, path string, body any, out any) (json.RawMessage, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway answered %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	raw := json.RawMessage(resp.Body())
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return raw, nil
}

// MBWayPhone converte um número português para o formato 351#9XXXXXXXX
func MBWayPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	digits = strings.TrimPrefix(digits, "00")
	if len(digits) == 12 && strings.HasPrefix(digits, "351") {
		digits = digits[3:]
	}
	return "351#" + digits
}
