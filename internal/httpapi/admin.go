package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/domrealce/storefront/internal/orders"
	"github.com/domrealce/storefront/internal/pageconfig"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// ListOrders lista encomendas para o back-office
func (s *Server) ListOrders(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "admin.list_orders")
	defer span.End()

	filter := orders.ListFilter{
		Estado: orders.Estado(c.Query("estado")),
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}
	list, total, err := s.Orders.ListOrders(ctx, filter)
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	if list == nil {
		list = []*orders.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "total": total})
}

// GetOrder devolve a encomenda completa, incluindo notas internas
func (s *Server) GetOrder(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "admin.get_order")
	defer span.End()

	order, err := s.Orders.GetOrder(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type transitionBody struct {
	Estado orders.Estado `json:"estado" binding:"required"`
}

// TransitionOrder aplica uma transição de estado
func (s *Server) TransitionOrder(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "admin.transition_order")
	defer span.End()

	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, span, err)
		return
	}
	span.SetAttributes(attribute.String("order_id", c.Param("id")), attribute.String("to", string(body.Estado)))

	order, err := s.Orders.Transition(ctx, c.Param("id"), body.Estado)
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type patchOrderBody struct {
	CodigoRastreio *string `json:"codigoRastreio"`
	NotasInternas  *string `json:"notasInternas"`
}

// PatchOrder altera o código de rastreio e/ou as notas internas
func (s *Server) PatchOrder(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "admin.patch_order")
	defer span.End()

	var body patchOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, span, err)
		return
	}
	if body.CodigoRastreio == nil && body.NotasInternas == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	id := c.Param("id")
	var (
		order *orders.Order
		err   error
	)
	if body.CodigoRastreio != nil {
		if order, err = s.Orders.UpdateTracking(ctx, id, *body.CodigoRastreio); err != nil {
			s.writeError(c, span, err)
			return
		}
	}
	if body.NotasInternas != nil {
		if order, err = s.Orders.UpdateNotes(ctx, id, *body.NotasInternas); err != nil {
			s.writeError(c, span, err)
			return
		}
	}
	c.JSON(http.StatusOK, order)
}

type pageConfigBody struct {
	Type         pageconfig.ValueType `json:"type"`
	Value        string               `json:"value"`
	DefaultValue string               `json:"defaultValue"`
	Metadata     json.RawMessage      `json:"metadata"`
}

// PutPageConfig grava uma configuração. Sem type, defaultValue nem metadata apenas o valor é alterado.
func (s *Server) PutPageConfig(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "admin.put_page_config")
	defer span.End()

	var body pageConfigBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, span, err)
		return
	}

	key := pageconfig.Key{Page: c.Param("page"), Section: c.Param("section"), Element: c.Param("element")}
	span.SetAttributes(attribute.String("key", key.String()))

	var (
		saved *pageconfig.PageConfig
		err   error
	)
	if body.Type == "" && body.DefaultValue == "" && len(body.Metadata) == 0 {
		saved, err = s.PageConfigs.UpdateConfig(ctx, key.Page, key.Section, key.Element, body.Value)
	} else {
		saved, err = s.PageConfigs.UpsertConfig(ctx, pageconfig.PageConfig{
			Key:          key,
			Type:         body.Type,
			Value:        body.Value,
			DefaultValue: body.DefaultValue,
			Metadata:     body.Metadata,
		})
	}
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeletePageConfig remove uma configuração
func (s *Server) DeletePageConfig(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "admin.delete_page_config")
	defer span.End()

	if err := s.PageConfigs.DeleteConfig(ctx, c.Param("page"), c.Param("section"), c.Param("element")); err != nil {
		s.writeError(c, span, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListContacts lista as mensagens do formulário de contacto
func (s *Server) ListContacts(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "admin.list_contacts")
	defer span.End()

	list, err := s.Contacts.List(ctx, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		s.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": list})
}
