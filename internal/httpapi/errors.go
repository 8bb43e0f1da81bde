package httpapi

import (
	"errors"
	"net/http"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/domrealce/storefront/internal/auth"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// statusFor traduz a taxonomia de erros da loja em códigos HTTP
func statusFor(err error) int {
	var te *apperrors.InvalidTransitionError
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &te):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrGatewayUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError responde com uma mensagem segura para o cliente; só erros de validação expõem detalhe
func (s *Server) writeError(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	status := statusFor(err)

	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(status, gin.H{"error": ve.Message, "field": ve.Field})
		return
	case status == http.StatusConflict && apperrors.IsInvalidTransition(err):
		s.logger.Warn("invalid transition", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "this change is not allowed for the order's current state"})
		return
	case status == http.StatusConflict:
		c.JSON(status, gin.H{"error": "conflict, please try again"})
		return
	case status == http.StatusNotFound:
		c.JSON(status, gin.H{"error": "not found"})
		return
	case status == http.StatusBadGateway:
		c.JSON(status, gin.H{"error": "payment service unavailable, please try again"})
		return
	case status == http.StatusUnauthorized:
		c.JSON(status, gin.H{"error": "invalid credentials"})
		return
	}

	span.SetStatus(codes.Error, err.Error())
	s.logger.Error("❌ Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
