package catalog

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SurchargeKey identifica uma combinação de materiais do papel de parede
type SurchargeKey struct {
	Acabamento Acabamento
	Laminacao  bool
	TipoCola   TipoCola
}

// PriceTable contém os preços configuráveis do catálogo
type PriceTable struct {
	// WallpaperBase é o preço por m² quando a textura não tem preço próprio
	WallpaperBase decimal.Decimal
	// TexturePrices sobrepõe o preço por m² de texturas específicas
	TexturePrices map[string]decimal.Decimal
	// Surcharges são acréscimos por m²; combinações ausentes valem zero
	Surcharges map[SurchargeKey]decimal.Decimal
	// CanvasPrices é o preço fechado de cada formato de tela
	CanvasPrices map[Tamanho]decimal.Decimal
}

// DefaultPriceTable devolve a tabela usada quando não há ficheiro de preços
func DefaultPriceTable() *PriceTable {
	return &PriceTable{
		WallpaperBase: decimal.NewFromInt(20),
		TexturePrices: map[string]decimal.Decimal{},
		Surcharges:    map[SurchargeKey]decimal.Decimal{},
		CanvasPrices: map[Tamanho]decimal.Decimal{
			"20x30":   decimal.RequireFromString("19.90"),
			"30x40":   decimal.RequireFromString("29.90"),
			"40x50":   decimal.RequireFromString("39.90"),
			"50x70":   decimal.RequireFromString("54.90"),
			"60x80":   decimal.RequireFromString("69.90"),
			"70x100":  decimal.RequireFromString("89.90"),
			"80x120":  decimal.RequireFromString("119.90"),
			"100x150": decimal.RequireFromString("159.90"),
		},
	}
}

// Surcharge devolve o acréscimo por m² de uma combinação de materiais
func (t *PriceTable) Surcharge(key SurchargeKey) decimal.Decimal {
	if s, ok := t.Surcharges[key]; ok {
		return s
	}
	return decimal.Zero
}

// WallpaperPrice devolve o preço por m² de uma textura
func (t *PriceTable) WallpaperPrice(texture string) decimal.Decimal {
	if p, ok := t.TexturePrices[texture]; ok {
		return p
	}
	return t.WallpaperBase
}

// Validate garante preços não negativos e todos os formatos de tela com preço
func (t *PriceTable) Validate() error {
	if t.WallpaperBase.IsNegative() {
		return fmt.Errorf("wallpaper base price must not be negative")
	}
	for name, p := range t.TexturePrices {
		if p.IsNegative() {
			return fmt.Errorf("texture %q: price must not be negative", name)
		}
	}
	for key, s := range t.Surcharges {
		if !key.Acabamento.Valid() || !key.TipoCola.Valid() {
			return fmt.Errorf("surcharge for unknown combination %+v", key)
		}
		if s.IsNegative() {
			return fmt.Errorf("surcharge %+v must not be negative", key)
		}
	}
	for _, size := range Tamanhos {
		p, ok := t.CanvasPrices[size]
		if !ok {
			return fmt.Errorf("canvas size %s has no price", size)
		}
		if !p.IsPositive() {
			return fmt.Errorf("canvas size %s: price must be positive", size)
		}
	}
	for size := range t.CanvasPrices {
		if !size.Valid() {
			return fmt.Errorf("price for unknown canvas size %q", size)
		}
	}
	return nil
}

// priceFile é o formato YAML do ficheiro de preços
type priceFile struct {
	Wallpaper struct {
		BasePerM2  string            `yaml:"basePerM2"`
		Textures   map[string]string `yaml:"textures"`
		Surcharges []struct {
			Acabamento Acabamento `yaml:"acabamento"`
			Laminacao  bool       `yaml:"laminacao"`
			TipoCola   TipoCola   `yaml:"tipoCola"`
			PerM2      string     `yaml:"perM2"`
		} `yaml:"surcharges"`
	} `yaml:"wallpaper"`
	Canvas map[Tamanho]string `yaml:"canvas"`
}

// LoadPriceTable lê a tabela de preços de um ficheiro YAML.
// Campos omitidos mantêm os valores de DefaultPriceTable.
func LoadPriceTable(path string) (*PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price table: %w", err)
	}
	return ParsePriceTable(data)
}

// ParsePriceTable interpreta uma tabela de preços em YAML
func ParsePriceTable(data []byte) (*PriceTable, error) {
	var file priceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse price table: %w", err)
	}

	table := DefaultPriceTable()

	if file.Wallpaper.BasePerM2 != "" {
		base, err := decimal.NewFromString(file.Wallpaper.BasePerM2)
		if err != nil {
			return nil, fmt.Errorf("wallpaper.basePerM2: %w", err)
		}
		table.WallpaperBase = base
	}

	for name, raw := range file.Wallpaper.Textures {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("wallpaper.textures[%s]: %w", name, err)
		}
		table.TexturePrices[name] = p
	}

	for _, s := range file.Wallpaper.Surcharges {
		perM2, err := decimal.NewFromString(s.PerM2)
		if err != nil {
			return nil, fmt.Errorf("wallpaper.surcharges: %w", err)
		}
		tipoCola := s.TipoCola
		if tipoCola == "" {
			tipoCola = ComCola
		}
		table.Surcharges[SurchargeKey{Acabamento: s.Acabamento, Laminacao: s.Laminacao, TipoCola: tipoCola}] = perM2
	}

	for size, raw := range file.Canvas {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("canvas[%s]: %w", size, err)
		}
		table.CanvasPrices[size] = p
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid price table: %w", err)
	}
	return table, nil
}
