// Package catalog define as variantes de produto vendidas na loja e o cálculo de preços.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/shopspring/decimal"
)

// MaxQuantity é a quantidade máxima de unidades numa linha do carrinho
const MaxQuantity = 999

// ProductType é a etiqueta que distingue as variantes de um item do carrinho
type ProductType string

const (
	TypeWallpaper ProductType = "papel-parede"
	TypeCanvas    ProductType = "quadros-canvas"
)

// Acabamento do papel de parede
type Acabamento string

const (
	AcabamentoBrilho Acabamento = "brilho"
	AcabamentoMate   Acabamento = "mate"
)

func (a Acabamento) Valid() bool {
	return a == AcabamentoBrilho || a == AcabamentoMate
}

// TipoCola indica se o papel de parede é entregue com ou sem cola
type TipoCola string

const (
	ComCola TipoCola = "com-cola"
	SemCola TipoCola = "sem-cola"
)

func (t TipoCola) Valid() bool {
	return t == ComCola || t == SemCola
}

// Tamanho é um dos formatos fixos de tela, em centímetros (largura x altura)
type Tamanho string

// Tamanhos lista os formatos de tela disponíveis, do menor para o maior
var Tamanhos = []Tamanho{"20x30", "30x40", "40x50", "50x70", "60x80", "70x100", "80x120", "100x150"}

func (t Tamanho) Valid() bool {
	for _, s := range Tamanhos {
		if s == t {
			return true
		}
	}
	return false
}

// Dimensions devolve a largura e a altura em centímetros
func (t Tamanho) Dimensions() (int, int, error) {
	if !t.Valid() {
		return 0, 0, apperrors.NewValidationError("tamanho", "unknown canvas size %q", t)
	}
	w, h, _ := strings.Cut(string(t), "x")
	largura, _ := strconv.Atoi(w)
	altura, _ := strconv.Atoi(h)
	return largura, altura, nil
}

// Wallpaper contém os atributos próprios de um papel de parede
type Wallpaper struct {
	TextureName  string
	TextureImage string
	Acabamento   Acabamento
	Laminacao    bool
	TipoCola     TipoCola
}

// Canvas contém os atributos próprios de um quadro em tela
type Canvas struct {
	CanvasName  string
	CanvasImage string
	Tamanho     Tamanho
}

// CartItem é uma linha do carrinho. Exatamente um de Wallpaper ou Canvas está preenchido, conforme Type.
type CartItem struct {
	ID        string
	Type      ProductType
	Quantity  int
	CreatedAt time.Time

	LarguraCm  int
	AlturaCm   int
	Area       decimal.Decimal
	PrecoBase  decimal.Decimal
	PrecoTotal decimal.Decimal

	Wallpaper *Wallpaper
	Canvas    *Canvas
}

// NewWallpaperItem cria um item de papel de parede ainda sem preço
func NewWallpaperItem(w Wallpaper, larguraCm, alturaCm int) CartItem {
	if w.TipoCola == "" {
		w.TipoCola = ComCola
	}
	return CartItem{
		Type:      TypeWallpaper,
		Quantity:  1,
		LarguraCm: larguraCm,
		AlturaCm:  alturaCm,
		Wallpaper: &w,
	}
}

// NewCanvasItem cria um item de tela ainda sem preço
func NewCanvasItem(c Canvas) CartItem {
	item := CartItem{
		Type:     TypeCanvas,
		Quantity: 1,
		Canvas:   &c,
	}
	if w, h, err := c.Tamanho.Dimensions(); err == nil {
		item.LarguraCm, item.AlturaCm = w, h
	}
	return item
}

// Validate verifica a forma do item sem olhar para preços
func (i CartItem) Validate() error {
	if i.Quantity < 1 {
		return apperrors.NewValidationError("quantity", "must be at least 1")
	}
	if i.Quantity > MaxQuantity {
		return apperrors.NewValidationError("quantity", "must be at most %d", MaxQuantity)
	}

	switch i.Type {
	case TypeWallpaper:
		if i.Wallpaper == nil || i.Canvas != nil {
			return apperrors.NewValidationError("type", "wallpaper item must carry only wallpaper attributes")
		}
		if !i.Wallpaper.Acabamento.Valid() {
			return apperrors.NewValidationError("acabamento", "unknown finish %q", i.Wallpaper.Acabamento)
		}
		if !i.Wallpaper.TipoCola.Valid() {
			return apperrors.NewValidationError("tipoCola", "unknown glue option %q", i.Wallpaper.TipoCola)
		}
		if i.LarguraCm <= 0 {
			return apperrors.NewValidationError("larguraCm", "must be positive")
		}
		if i.AlturaCm <= 0 {
			return apperrors.NewValidationError("alturaCm", "must be positive")
		}
	case TypeCanvas:
		if i.Canvas == nil || i.Wallpaper != nil {
			return apperrors.NewValidationError("type", "canvas item must carry only canvas attributes")
		}
		if !i.Canvas.Tamanho.Valid() {
			return apperrors.NewValidationError("tamanho", "unknown canvas size %q", i.Canvas.Tamanho)
		}
	default:
		return apperrors.NewValidationError("type", "unknown product type %q", i.Type)
	}
	return nil
}

// VariantKey identifica o produto configurado, ignorando id, quantidade e preço.
// Dois itens com a mesma chave representam a mesma linha do carrinho.
func (i CartItem) VariantKey() string {
	switch i.Type {
	case TypeWallpaper:
		if i.Wallpaper == nil {
			break
		}
		w := i.Wallpaper
		return fmt.Sprintf("%s|%s|%s|%s|%t|%s|%dx%d",
			i.Type, w.TextureName, w.TextureImage, w.Acabamento, w.Laminacao, w.TipoCola, i.LarguraCm, i.AlturaCm)
	case TypeCanvas:
		if i.Canvas == nil {
			break
		}
		c := i.Canvas
		return fmt.Sprintf("%s|%s|%s|%s", i.Type, c.CanvasName, c.CanvasImage, c.Tamanho)
	}
	return string(i.Type) + "|" + i.ID
}

// LineTotal devolve precoTotal * quantity
func (i CartItem) LineTotal() decimal.Decimal {
	return i.PrecoTotal.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DisplayName devolve o nome da textura ou da tela
func (i CartItem) DisplayName() string {
	switch {
	case i.Wallpaper != nil:
		return i.Wallpaper.TextureName
	case i.Canvas != nil:
		return i.Canvas.CanvasName
	}
	return ""
}

// itemWire é o formato JSON plano usado pelo carrinho e pelo snapshot "itens" das encomendas
type itemWire struct {
	ID        string      `json:"id"`
	Type      ProductType `json:"type"`
	Quantity  int         `json:"quantity"`
	CreatedAt time.Time   `json:"createdAt"`

	TextureName  string           `json:"textureName,omitempty"`
	TextureImage string           `json:"textureImage,omitempty"`
	Acabamento   Acabamento       `json:"acabamento,omitempty"`
	Laminacao    *bool            `json:"laminacao,omitempty"`
	TipoCola     TipoCola         `json:"tipoCola,omitempty"`
	Largura      *decimal.Decimal `json:"largura,omitempty"`
	Altura       *decimal.Decimal `json:"altura,omitempty"`

	CanvasName  string  `json:"canvasName,omitempty"`
	CanvasImage string  `json:"canvasImage,omitempty"`
	Tamanho     Tamanho `json:"tamanho,omitempty"`

	LarguraCm  int             `json:"larguraCm"`
	AlturaCm   int             `json:"alturaCm"`
	Area       decimal.Decimal `json:"area"`
	PrecoBase  decimal.Decimal `json:"precoBase"`
	PrecoTotal decimal.Decimal `json:"precoTotal"`
}

func (i CartItem) MarshalJSON() ([]byte, error) {
	w := itemWire{
		ID:         i.ID,
		Type:       i.Type,
		Quantity:   i.Quantity,
		CreatedAt:  i.CreatedAt,
		LarguraCm:  i.LarguraCm,
		AlturaCm:   i.AlturaCm,
		Area:       i.Area,
		PrecoBase:  i.PrecoBase,
		PrecoTotal: i.PrecoTotal,
	}

	switch {
	case i.Wallpaper != nil:
		laminacao := i.Wallpaper.Laminacao
		largura := centimetersToMeters(i.LarguraCm)
		altura := centimetersToMeters(i.AlturaCm)
		w.TextureName = i.Wallpaper.TextureName
		w.TextureImage = i.Wallpaper.TextureImage
		w.Acabamento = i.Wallpaper.Acabamento
		w.Laminacao = &laminacao
		w.TipoCola = i.Wallpaper.TipoCola
		w.Largura = &largura
		w.Altura = &altura
	case i.Canvas != nil:
		w.CanvasName = i.Canvas.CanvasName
		w.CanvasImage = i.Canvas.CanvasImage
		w.Tamanho = i.Canvas.Tamanho
	}

	return json.Marshal(w)
}

func (i *CartItem) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	item := CartItem{
		ID:         w.ID,
		Type:       w.Type,
		Quantity:   w.Quantity,
		CreatedAt:  w.CreatedAt,
		LarguraCm:  w.LarguraCm,
		AlturaCm:   w.AlturaCm,
		Area:       w.Area,
		PrecoBase:  w.PrecoBase,
		PrecoTotal: w.PrecoTotal,
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	switch w.Type {
	case TypeWallpaper:
		wp := &Wallpaper{
			TextureName:  w.TextureName,
			TextureImage: w.TextureImage,
			Acabamento:   w.Acabamento,
			TipoCola:     w.TipoCola,
		}
		if w.Laminacao != nil {
			wp.Laminacao = *w.Laminacao
		}
		if wp.TipoCola == "" {
			wp.TipoCola = ComCola
		}
		// Clientes antigos enviavam apenas as medidas em metros
		if item.LarguraCm == 0 && w.Largura != nil {
			item.LarguraCm = int(w.Largura.Shift(2).Round(0).IntPart())
		}
		if item.AlturaCm == 0 && w.Altura != nil {
			item.AlturaCm = int(w.Altura.Shift(2).Round(0).IntPart())
		}
		item.Wallpaper = wp
	case TypeCanvas:
		item.Canvas = &Canvas{
			CanvasName:  w.CanvasName,
			CanvasImage: w.CanvasImage,
			Tamanho:     w.Tamanho,
		}
		if width, height, err := w.Tamanho.Dimensions(); err == nil {
			item.LarguraCm, item.AlturaCm = width, height
		}
	default:
		return apperrors.NewValidationError("type", "unknown product type %q", w.Type)
	}

	*i = item
	return nil
}

func centimetersToMeters(cm int) decimal.Decimal {
	return decimal.NewFromInt(int64(cm)).Shift(-2)
}
