// Package cart implementa o carrinho de compras, guardado apenas na sessão do cliente.
package cart

import (
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/domrealce/storefront/internal/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart é a coleção ordenada de itens do cliente. A ordem de inserção é a ordem de apresentação.
type Cart struct {
	Items     []catalog.CartItem `json:"items"`
	Total     decimal.Decimal    `json:"total"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// New cria um carrinho vazio
func New() *Cart {
	return &Cart{Items: []catalog.CartItem{}, Total: decimal.Zero, UpdatedAt: time.Now()}
}

// AddItem acrescenta um item já com preço. Se existir uma linha com os mesmos atributos
// de variante, a quantidade dessa linha é incrementada e nenhuma linha nova é criada.
// A soma não pode passar de catalog.MaxQuantity. Devolve a linha resultante.
func (c *Cart) AddItem(item catalog.CartItem) (catalog.CartItem, error) {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if err := item.Validate(); err != nil {
		return catalog.CartItem{}, err
	}

	key := item.VariantKey()
	for i := range c.Items {
		if c.Items[i].VariantKey() == key {
			if c.Items[i].Quantity > catalog.MaxQuantity-item.Quantity {
				return catalog.CartItem{}, apperrors.NewValidationError("quantity", "must be at most %d", catalog.MaxQuantity)
			}
			c.Items[i].Quantity += item.Quantity
			c.touch()
			return c.Items[i], nil
		}
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	c.Items = append(c.Items, item)
	c.touch()
	return item, nil
}

// RemoveItem remove a linha com o id dado; não faz nada se não existir
func (c *Cart) RemoveItem(id string) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch()
			return
		}
	}
}

// UpdateQuantity altera a quantidade de uma linha; qty == 0 remove a linha
func (c *Cart) UpdateQuantity(id string, qty int) error {
	if qty < 0 {
		return apperrors.NewValidationError("quantity", "must not be negative")
	}
	if qty > catalog.MaxQuantity {
		return apperrors.NewValidationError("quantity", "must be at most %d", catalog.MaxQuantity)
	}
	if qty == 0 {
		c.RemoveItem(id)
		return nil
	}

	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items[i].Quantity = qty
			c.touch()
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// RecomputeTotal volta a somar precoTotal * quantity de todas as linhas
func (c *Cart) RecomputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	c.Total = total
	return total
}

// Clear esvazia o carrinho, usado depois do checkout
func (c *Cart) Clear() {
	c.Items = []catalog.CartItem{}
	c.touch()
}

// Find devolve a linha com o id dado
func (c *Cart) Find(id string) (catalog.CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return catalog.CartItem{}, false
}

// Count devolve o número total de unidades no carrinho
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// IsEmpty reporta se o carrinho não tem linhas
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) touch() {
	c.RecomputeTotal()
	c.UpdatedAt = time.Now()
}
