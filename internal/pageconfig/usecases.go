package pageconfig

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/domrealce/storefront/internal/apperrors"
	"go.uber.org/zap"
)

// UseCase contém a lógica de leitura e edição das configurações de página
type UseCase struct {
	repository Repository
	logger     *zap.Logger
}

// NewUseCase cria uma nova instância de UseCase
func NewUseCase(repository Repository, logger *zap.Logger) *UseCase {
	return &UseCase{repository: repository, logger: logger}
}

// GetConfig devolve o valor guardado, o valor por omissão da linha ou fallback, por esta ordem
func (uc *UseCase) GetConfig(ctx context.Context, page, section, element, fallback string) (string, error) {
	cfg, err := uc.repository.Get(ctx, Key{Page: page, Section: section, Element: element})
	if errors.Is(err, apperrors.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return cfg.Resolve(fallback), nil
}

// UpdateConfig altera o valor de uma chave, criando a linha como text se ainda não existir.
// O valor é validado contra o tipo da linha existente.
func (uc *UseCase) UpdateConfig(ctx context.Context, page, section, element, value string) (*PageConfig, error) {
	key := Key{Page: page, Section: section, Element: element}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	cfg := &PageConfig{Key: key, Type: TypeText}
	existing, err := uc.repository.Get(ctx, key)
	switch {
	case err == nil:
		cfg.Type = existing.Type
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	v, err := ParseValue(cfg.Type, value)
	if err != nil {
		return nil, err
	}
	cfg.Value = v.String()

	saved, err := uc.repository.Upsert(ctx, cfg)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("✅ Page config updated", zap.String("key", key.String()), zap.String("type", string(saved.Type)))
	return saved, nil
}

// UpsertConfig grava uma configuração completa, com tipo, valor por omissão e metadata explícitos
func (uc *UseCase) UpsertConfig(ctx context.Context, cfg PageConfig) (*PageConfig, error) {
	if err := cfg.Key.Validate(); err != nil {
		return nil, err
	}
	if cfg.Type == "" {
		cfg.Type = TypeText
	}
	if !cfg.Type.Valid() {
		return nil, apperrors.NewValidationError("type", "unknown config type %q", cfg.Type)
	}

	v, err := ParseValue(cfg.Type, cfg.Value)
	if err != nil {
		return nil, err
	}
	cfg.Value = v.String()

	if cfg.DefaultValue != "" {
		d, err := ParseValue(cfg.Type, cfg.DefaultValue)
		if err != nil {
			var ve *apperrors.ValidationError
			if errors.As(err, &ve) {
				ve.Field = "defaultValue"
			}
			return nil, err
		}
		cfg.DefaultValue = d.String()
	} else if err := uc.checkStoredDefault(ctx, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Metadata) > 0 && !json.Valid(cfg.Metadata) {
		return nil, apperrors.NewValidationError("metadata", "must be valid JSON")
	}

	saved, err := uc.repository.Upsert(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("✅ Page config saved", zap.String("key", cfg.Key.String()), zap.String("type", string(saved.Type)))
	return saved, nil
}

// checkStoredDefault garante que o valor por omissão já gravado, que o Upsert mantém
// quando não é enviado outro, continua válido se o tipo da linha mudar
func (uc *UseCase) checkStoredDefault(ctx context.Context, cfg PageConfig) error {
	existing, err := uc.repository.Get(ctx, cfg.Key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Type == cfg.Type || existing.DefaultValue == "" {
		return nil
	}
	if _, err := ParseValue(cfg.Type, existing.DefaultValue); err != nil {
		return apperrors.NewValidationError("defaultValue",
			"stored default %q is not a valid %s; send a new defaultValue", existing.DefaultValue, cfg.Type)
	}
	return nil
}

// ListPage devolve todas as configurações de uma página
func (uc *UseCase) ListPage(ctx context.Context, page string) ([]PageConfig, error) {
	if page == "" {
		return nil, apperrors.NewValidationError("page", "is required")
	}
	return uc.repository.ListPage(ctx, page)
}

// DeleteConfig remove a configuração; leituras seguintes voltam ao fallback
func (uc *UseCase) DeleteConfig(ctx context.Context, page, section, element string) error {
	key := Key{Page: page, Section: section, Element: element}
	if err := uc.repository.Delete(ctx, key); err != nil {
		return err
	}
	uc.logger.Info("Page config deleted", zap.String("key", key.String()))
	return nil
}
