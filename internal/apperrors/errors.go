// Package apperrors define a taxonomia de erros partilhada pelos módulos da loja.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que uma pesquisa por id ou chave não encontrou nada
	ErrNotFound = errors.New("not found")

	// ErrConflict indica uma violação de unicidade no armazenamento
	ErrConflict = errors.New("conflict")

	// ErrGatewayUnavailable indica que o gateway de pagamento falhou; o cliente deve tentar novamente
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// ValidationError representa input malformado ou fora do intervalo permitido
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError cria um ValidationError para um campo
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError representa uma violação das regras da máquina de estados
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
	}
	return fmt.Sprintf("invalid transition from %q to %q: %s", e.From, e.To, e.Reason)
}

// IsValidation reporta se err contém um ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidTransition reporta se err contém um InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
