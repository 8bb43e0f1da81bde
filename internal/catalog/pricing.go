package catalog

import (
	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/shopspring/decimal"
)

// Quote é o resultado do cálculo de preço de um item
type Quote struct {
	LarguraCm  int             `json:"larguraCm"`
	AlturaCm   int             `json:"alturaCm"`
	Area       decimal.Decimal `json:"area"`
	PrecoBase  decimal.Decimal `json:"precoBase"`
	PrecoTotal decimal.Decimal `json:"precoTotal"`
}

// Calculator calcula preços a partir de uma PriceTable. Não tem efeitos colaterais.
type Calculator struct {
	table *PriceTable
}

// NewCalculator cria um Calculator; uma tabela nil significa DefaultPriceTable
func NewCalculator(table *PriceTable) *Calculator {
	if table == nil {
		table = DefaultPriceTable()
	}
	return &Calculator{table: table}
}

// Area devolve (larguraCm/100) * (alturaCm/100) em m², sem arredondamento
func Area(larguraCm, alturaCm int) decimal.Decimal {
	return decimal.NewFromInt(int64(larguraCm)).Mul(decimal.NewFromInt(int64(alturaCm))).Shift(-4)
}

// QuoteWallpaper calcula área e preço de um papel de parede
func (c *Calculator) QuoteWallpaper(w Wallpaper, larguraCm, alturaCm int) (Quote, error) {
	if larguraCm <= 0 {
		return Quote{}, apperrors.NewValidationError("larguraCm", "must be positive")
	}
	if alturaCm <= 0 {
		return Quote{}, apperrors.NewValidationError("alturaCm", "must be positive")
	}
	if !w.Acabamento.Valid() {
		return Quote{}, apperrors.NewValidationError("acabamento", "unknown finish %q", w.Acabamento)
	}
	tipoCola := w.TipoCola
	if tipoCola == "" {
		tipoCola = ComCola
	}
	if !tipoCola.Valid() {
		return Quote{}, apperrors.NewValidationError("tipoCola", "unknown glue option %q", w.TipoCola)
	}

	area := Area(larguraCm, alturaCm)
	base := c.table.WallpaperPrice(w.TextureName)
	surcharge := c.table.Surcharge(SurchargeKey{
		Acabamento: w.Acabamento,
		Laminacao:  w.Laminacao,
		TipoCola:   tipoCola,
	})

	return Quote{
		LarguraCm:  larguraCm,
		AlturaCm:   alturaCm,
		Area:       area,
		PrecoBase:  base,
		PrecoTotal: base.Add(surcharge).Mul(area).Round(2),
	}, nil
}

// QuoteCanvas devolve o preço fechado de um formato de tela.
// O preço não deriva da área: em formatos pequenos domina o custo de montagem.
func (c *Calculator) QuoteCanvas(t Tamanho) (Quote, error) {
	largura, altura, err := t.Dimensions()
	if err != nil {
		return Quote{}, err
	}
	price, ok := c.table.CanvasPrices[t]
	if !ok {
		return Quote{}, apperrors.NewValidationError("tamanho", "canvas size %q has no price", t)
	}

	return Quote{
		LarguraCm:  largura,
		AlturaCm:   altura,
		Area:       Area(largura, altura),
		PrecoBase:  price,
		PrecoTotal: price,
	}, nil
}

// Quote calcula o preço de um item de qualquer variante
func (c *Calculator) Quote(item CartItem) (Quote, error) {
	switch item.Type {
	case TypeWallpaper:
		if item.Wallpaper == nil {
			return Quote{}, apperrors.NewValidationError("type", "wallpaper attributes missing")
		}
		return c.QuoteWallpaper(*item.Wallpaper, item.LarguraCm, item.AlturaCm)
	case TypeCanvas:
		if item.Canvas == nil {
			return Quote{}, apperrors.NewValidationError("type", "canvas attributes missing")
		}
		return c.QuoteCanvas(item.Canvas.Tamanho)
	default:
		return Quote{}, apperrors.NewValidationError("type", "unknown product type %q", item.Type)
	}
}

// Reprice devolve uma cópia do item validado, com área e preços recalculados.
// Os valores enviados pelo cliente são descartados.
func (c *Calculator) Reprice(item CartItem) (CartItem, error) {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if err := item.Validate(); err != nil {
		return CartItem{}, err
	}

	q, err := c.Quote(item)
	if err != nil {
		return CartItem{}, err
	}

	item.LarguraCm = q.LarguraCm
	item.AlturaCm = q.AlturaCm
	item.Area = q.Area
	item.PrecoBase = q.PrecoBase
	item.PrecoTotal = q.PrecoTotal

	// cópias dos payloads para não partilhar ponteiros com o chamador
	if item.Wallpaper != nil {
		w := *item.Wallpaper
		item.Wallpaper = &w
	}
	if item.Canvas != nil {
		cv := *item.Canvas
		item.Canvas = &cv
	}
	return item, nil
}
