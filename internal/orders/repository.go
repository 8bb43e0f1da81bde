package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ListFilter filtra e pagina a listagem de encomendas
type ListFilter struct {
	Estado Estado
	Limit  int
	Offset int
}

// Repository define a interface para operações de banco de dados de encomendas
type Repository interface {
	// BeginTx inicia uma transação para mutações com lock pessimista
	BeginTx(ctx context.Context) (Tx, error)

	// CreateOrder grava uma nova encomenda; devolve ErrConflict se o número já existir
	CreateOrder(ctx context.Context, order *Order) error

	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderByNumber(ctx context.Context, numero string) (*Order, error)

	// GetOrderForUpdate e GetOrderByReferenceForUpdate bloqueiam a linha até ao fim da transação
	GetOrderForUpdate(ctx context.Context, tx Tx, id string) (*Order, error)
	GetOrderByReferenceForUpdate(ctx context.Context, tx Tx, reference string) (*Order, error)

	// UpdateOrder grava estado, pagamento, rastreio, notas e datas de uma encomenda bloqueada
	UpdateOrder(ctx context.Context, tx Tx, order *Order) error

	// SetPaymentReference guarda a referência e a resposta do gateway
	SetPaymentReference(ctx context.Context, id, reference string, dados json.RawMessage) error

	ListOrders(ctx context.Context, filter ListFilter) ([]*Order, int, error)
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresTx implementa a interface Tx sobre pgx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// OrderRepository implementa Repository usando PostgreSQL
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository cria uma nova instância de OrderRepository
func NewOrderRepository(db *pgxpool.Pool) Repository {
	return &OrderRepository{
		db: db,
	}
}

const orderColumns = `
	id, numero_encomenda, nome_cliente, email_cliente, telefone_cliente, morada, codigo_postal, cidade, nif,
	itens, subtotal::text, envio::text, iva::text, total::text,
	estado, estado_pagamento, metodo_pagamento, referencia_ifthenpay, dados_pagamento,
	codigo_rastreio, notas_internas, data_pagamento, data_envio, data_entrega, created_at, updated_at`

// BeginTx inicia uma nova transação
func (r *OrderRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// CreateOrder cria uma nova encomenda no banco de dados
func (r *OrderRepository) CreateOrder(ctx context.Context, order *Order) error {
	itens, err := json.Marshal(order.Itens)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO orders (
			id, numero_encomenda, nome_cliente, email_cliente, telefone_cliente, morada, codigo_postal, cidade, nif,
			itens, subtotal, envio, iva, total, estado, estado_pagamento, metodo_pagamento, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		order.ID, order.NumeroEncomenda, order.Nome, order.Email, order.Telefone, order.Morada, order.CodigoPostal,
		order.Cidade, order.NIF, itens,
		order.Subtotal.StringFixed(2), order.Envio.StringFixed(2), order.IVA.StringFixed(2), order.Total.StringFixed(2),
		order.Estado, order.EstadoPagamento, order.MetodoPagamento, order.CreatedAt, order.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("order number %s already taken: %w", order.NumeroEncomenda, apperrors.ErrConflict)
	}
	return err
}

// GetOrder busca uma encomenda pelo ID
func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row, "id "+id)
}

// GetOrderByNumber busca uma encomenda pelo número visível ao cliente
func (r *OrderRepository) GetOrderByNumber(ctx context.Context, numero string) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE numero_encomenda = $1`, numero)
	return scanOrder(row, "number "+numero)
}

// GetOrderForUpdate obtém a encomenda com lock pessimista (FOR UPDATE)
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, tx Tx, id string) (*Order, error) {
	pgTx := tx.(*PostgresTx).tx
	row := pgTx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row, "id "+id)
}

// GetOrderByReferenceForUpdate obtém a encomenda da referência do gateway com lock pessimista
func (r *OrderRepository) GetOrderByReferenceForUpdate(ctx context.Context, tx Tx, reference string) (*Order, error) {
	pgTx := tx.(*PostgresTx).tx
	row := pgTx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE referencia_ifthenpay = $1 FOR UPDATE`, reference)
	return scanOrder(row, "reference "+reference)
}

// UpdateOrder atualiza os campos mutáveis de uma encomenda
func (r *OrderRepository) UpdateOrder(ctx context.Context, tx Tx, order *Order) error {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE orders
		SET estado = $1,
		    estado_pagamento = $2,
		    codigo_rastreio = NULLIF($3, ''),
		    notas_internas = NULLIF($4, ''),
		    data_pagamento = $5,
		    data_envio = $6,
		    data_entrega = $7,
		    updated_at = $8
		WHERE id = $9
	`, order.Estado, order.EstadoPagamento, order.CodigoRastreio, order.NotasInternas,
		order.DataPagamento, order.DataEnvio, order.DataEntrega, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", order.ID, apperrors.ErrNotFound)
	}
	return nil
}

// SetPaymentReference guarda a referência de pagamento devolvida pelo gateway
func (r *OrderRepository) SetPaymentReference(ctx context.Context, id, reference string, dados json.RawMessage) error {
	if len(dados) == 0 {
		dados = nil
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET referencia_ifthenpay = $1, dados_pagamento = $2, updated_at = NOW()
		WHERE id = $3
	`, reference, dados, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("payment reference %s already used: %w", reference, apperrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to store payment reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// ListOrders lista encomendas da mais recente para a mais antiga
func (r *OrderRepository) ListOrders(ctx context.Context, filter ListFilter) ([]*Order, int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE ($1::text = '' OR estado = $1)`, string(filter.Estado)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text = '' OR estado = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Estado), filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var result []*Order
	for rows.Next() {
		order, err := scanOrder(rows, "")
		if err != nil {
			return nil, 0, err
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return result, total, nil
}

func scanOrder(row pgx.Row, lookup string) (*Order, error) {
	var (
		order                                 Order
		telefone, nif, referencia             *string
		rastreio, notas                       *string
		itens, dados                          []byte
		subtotal, envio, iva, total           string
		dataPagamento, dataEnvio, dataEntrega *time.Time
	)

	err := row.Scan(
		&order.ID, &order.NumeroEncomenda, &order.Nome, &order.Email, &telefone, &order.Morada, &order.CodigoPostal,
		&order.Cidade, &nif, &itens, &subtotal, &envio, &iva, &total,
		&order.Estado, &order.EstadoPagamento, &order.MetodoPagamento, &referencia, &dados,
		&rastreio, &notas, &dataPagamento, &dataEnvio, &dataEntrega, &order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", lookup, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}

	order.Telefone = deref(telefone)
	order.NIF = deref(nif)
	order.ReferenciaIfthenpay = deref(referencia)
	order.CodigoRastreio = deref(rastreio)
	order.NotasInternas = deref(notas)
	order.DataPagamento, order.DataEnvio, order.DataEntrega = dataPagamento, dataEnvio, dataEntrega
	if len(dados) > 0 {
		order.DadosPagamento = json.RawMessage(dados)
	}

	order.Itens = []catalog.CartItem{}
	if err := json.Unmarshal(itens, &order.Itens); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}

	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{{subtotal, &order.Subtotal}, {envio, &order.Envio}, {iva, &order.IVA}, {total, &order.Total}} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode order amount: %w", err)
		}
		*f.dst = v
	}

	return &order, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
