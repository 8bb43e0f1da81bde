package pageconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository define as operações de banco de dados das configurações de página
type Repository interface {
	Get(ctx context.Context, key Key) (*PageConfig, error)
	// Upsert insere ou atualiza a linha da chave; nunca cria duplicados
	Upsert(ctx context.Context, cfg *PageConfig) (*PageConfig, error)
	ListPage(ctx context.Context, page string) ([]PageConfig, error)
	Delete(ctx context.Context, key Key) error
}

// PostgresRepository implementa Repository usando PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository cria uma nova instância de PostgresRepository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const configColumns = `id, page, section, element, type, COALESCE(value, ''), COALESCE(default_value, ''), metadata, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, key Key) (*PageConfig, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+configColumns+`
		FROM page_configs
		WHERE page = $1 AND section = $2 AND element = $3
	`, key.Page, key.Section, key.Element)

	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("page config %s: %w", key, apperrors.ErrNotFound)
	}
	return cfg, err
}

// Upsert usa o índice único (page, section, element) para resolver inserções concorrentes
func (r *PostgresRepository) Upsert(ctx context.Context, cfg *PageConfig) (*PageConfig, error) {
	var metadata []byte
	if len(cfg.Metadata) > 0 {
		metadata = cfg.Metadata
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO page_configs (id, page, section, element, type, value, default_value, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW())
		ON CONFLICT (page, section, element) DO UPDATE
		SET type = EXCLUDED.type,
		    value = EXCLUDED.value,
		    default_value = COALESCE(EXCLUDED.default_value, page_configs.default_value),
		    metadata = COALESCE(EXCLUDED.metadata, page_configs.metadata),
		    updated_at = NOW()
		RETURNING `+configColumns,
		uuid.New().String(), cfg.Page, cfg.Section, cfg.Element, cfg.Type, cfg.Value, cfg.DefaultValue, metadata,
	)
	saved, err := scanConfig(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert page config: %w", err)
	}
	return saved, nil
}

func (r *PostgresRepository) ListPage(ctx context.Context, page string) ([]PageConfig, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+configColumns+`
		FROM page_configs
		WHERE page = $1
		ORDER BY section, element
	`, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list page configs: %w", err)
	}
	defer rows.Close()

	result := []PageConfig{}
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read page config: %w", err)
		}
		result = append(result, *cfg)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, key Key) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM page_configs WHERE page = $1 AND section = $2 AND element = $3
	`, key.Page, key.Section, key.Element)
	if err != nil {
		return fmt.Errorf("failed to delete page config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("page config %s: %w", key, apperrors.ErrNotFound)
	}
	return nil
}

func scanConfig(row pgx.Row) (*PageConfig, error) {
	var (
		cfg      PageConfig
		metadata []byte
	)
	if err := row.Scan(&cfg.ID, &cfg.Page, &cfg.Section, &cfg.Element, &cfg.Type,
		&cfg.Value, &cfg.DefaultValue, &metadata, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		cfg.Metadata = json.RawMessage(metadata)
	}
	return &cfg, nil
}
