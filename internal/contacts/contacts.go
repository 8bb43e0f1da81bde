// Package contacts guarda as mensagens do formulário de contacto.
package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Contact representa uma mensagem recebida pelo formulário
type Contact struct {
	ID        string    `json:"id"`
	Nome      string    `json:"nome"`
	Email     string    `json:"email"`
	Telefone  string    `json:"telefone,omitempty"`
	Assunto   string    `json:"assunto,omitempty"`
	Mensagem  string    `json:"mensagem"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate exige nome, email válido e mensagem
func (c Contact) Validate() error {
	if strings.TrimSpace(c.Nome) == "" {
		return apperrors.NewValidationError("nome", "is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return apperrors.NewValidationError("email", "is not a valid email address")
	}
	if strings.TrimSpace(c.Mensagem) == "" {
		return apperrors.NewValidationError("mensagem", "is required")
	}
	if len(c.Mensagem) > 5000 {
		return apperrors.NewValidationError("mensagem", "must have at most 5000 characters")
	}
	return nil
}

// Repository define as operações de armazenamento de contactos
type Repository interface {
	Create(ctx context.Context, c *Contact) error
	List(ctx context.Context, limit, offset int) ([]Contact, error)
}

// SQLRepository implementa Repository sobre database/sql
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository cria uma nova instância de SQLRepository
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, c *Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, nome, email, telefone, assunto, mensagem, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
	`, c.ID, c.Nome, c.Email, c.Telefone, c.Assunto, c.Mensagem, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, limit, offset int) ([]Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, nome, email, COALESCE(telefone, ''), COALESCE(assunto, ''), mensagem, created_at
		FROM contacts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	result := []Contact{}
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Nome, &c.Email, &c.Telefone, &c.Assunto, &c.Mensagem, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to read contact: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Notifier avisa a equipa de uma nova mensagem
type Notifier interface {
	ContactReceived(ctx context.Context, c *Contact) error
}

// UseCase contém a lógica do formulário de contacto
type UseCase struct {
	repository Repository
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewUseCase cria uma nova instância de UseCase
func NewUseCase(repository Repository, notifier Notifier, logger *zap.Logger) *UseCase {
	return &UseCase{repository: repository, notifier: notifier, logger: logger, now: time.Now}
}

// Submit valida e grava a mensagem. Falhas da notificação são apenas registadas.
func (uc *UseCase) Submit(ctx context.Context, form Contact) (*Contact, error) {
	form.Nome = strings.TrimSpace(form.Nome)
	form.Email = strings.TrimSpace(form.Email)
	if err := form.Validate(); err != nil {
		return nil, err
	}

	form.ID = uuid.New().String()
	form.CreatedAt = uc.now()
	if err := uc.repository.Create(ctx, &form); err != nil {
		return nil, err
	}
	uc.logger.Info("✅ Contact received", zap.String("contact_id", form.ID))

	if err := uc.notifier.ContactReceived(ctx, &form); err != nil {
		uc.logger.Error("failed to send contact notification", zap.String("contact_id", form.ID), zap.Error(err))
	}
	return &form, nil
}

// List devolve as mensagens mais recentes primeiro
func (uc *UseCase) List(ctx context.Context, limit, offset int) ([]Contact, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return uc.repository.List(ctx, limit, offset)
}
