// Package pageconfig resolve os textos, cores e imagens editáveis de cada página do site.
package pageconfig

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/domrealce/storefront/internal/apperrors"
	"github.com/shopspring/decimal"
)

// ValueType é o tipo declarado do valor de uma configuração
type ValueType string

const (
	TypeText   ValueType = "text"
	TypeColor  ValueType = "color"
	TypeSize   ValueType = "size"
	TypeImage  ValueType = "image"
	TypeNumber ValueType = "number"
)

func (t ValueType) Valid() bool {
	switch t {
	case TypeText, TypeColor, TypeSize, TypeImage, TypeNumber:
		return true
	}
	return false
}

// Key é a chave composta de uma configuração; existe no máximo uma linha por chave
type Key struct {
	Page    string `json:"page"`
	Section string `json:"section"`
	Element string `json:"element"`
}

func (k Key) Validate() error {
	switch {
	case strings.TrimSpace(k.Page) == "":
		return apperrors.NewValidationError("page", "is required")
	case strings.TrimSpace(k.Section) == "":
		return apperrors.NewValidationError("section", "is required")
	case strings.TrimSpace(k.Element) == "":
		return apperrors.NewValidationError("element", "is required")
	}
	return nil
}

func (k Key) String() string {
	return k.Page + "/" + k.Section + "/" + k.Element
}

// PageConfig representa uma configuração editável de uma página
type PageConfig struct {
	ID string `json:"id"`
	Key
	Type         ValueType       `json:"type"`
	Value        string          `json:"value"`
	DefaultValue string          `json:"defaultValue,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Resolve devolve o valor, ou o valor por omissão da linha, ou fallback
func (c *PageConfig) Resolve(fallback string) string {
	if c == nil {
		return fallback
	}
	if c.Value != "" {
		return c.Value
	}
	if c.DefaultValue != "" {
		return c.DefaultValue
	}
	return fallback
}

// Value é um valor já validado para o seu tipo
type Value interface {
	Type() ValueType
	String() string
}

type TextValue string

func (v TextValue) Type() ValueType { return TypeText }
func (v TextValue) String() string  { return string(v) }

// ColorValue é uma cor hexadecimal #rgb, #rrggbb ou #rrggbbaa
type ColorValue string

func (v ColorValue) Type() ValueType { return TypeColor }
func (v ColorValue) String() string  { return string(v) }

// SizeValue é uma medida CSS, por exemplo 1.5rem
type SizeValue struct {
	Amount decimal.Decimal
	Unit   string
}

func (v SizeValue) Type() ValueType { return TypeSize }
func (v SizeValue) String() string  { return v.Amount.String() + v.Unit }

type NumberValue struct {
	decimal.Decimal
}

func (v NumberValue) Type() ValueType { return TypeNumber }

// ImageValue é um caminho /public-objects/... ou um URL http(s)
type ImageValue string

func (v ImageValue) Type() ValueType { return TypeImage }
func (v ImageValue) String() string  { return string(v) }

var (
	colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	sizePattern  = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)(px|rem|em|%|vh|vw)$`)
)

// ParseValue valida raw de acordo com t. Um valor vazio é sempre aceite e significa "usar o valor por omissão".
func ParseValue(t ValueType, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" && t.Valid() {
		return TextValue(""), nil
	}

	switch t {
	case TypeText:
		return TextValue(raw), nil
	case TypeColor:
		if !colorPattern.MatchString(raw) {
			return nil, apperrors.NewValidationError("value", "%q is not a hex color", raw)
		}
		return ColorValue(strings.ToLower(raw)), nil
	case TypeSize:
		m := sizePattern.FindStringSubmatch(raw)
		if m == nil {
			return nil, apperrors.NewValidationError("value", "%q is not a size with a CSS unit", raw)
		}
		return SizeValue{Amount: decimal.RequireFromString(m[1]), Unit: m[2]}, nil
	case TypeNumber:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, apperrors.NewValidationError("value", "%q is not a number", raw)
		}
		return NumberValue{d}, nil
	case TypeImage:
		if strings.HasPrefix(raw, "/public-objects/") {
			return ImageValue(raw), nil
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperrors.NewValidationError("value", "%q is not an image path or URL", raw)
		}
		return ImageValue(raw), nil
	default:
		return nil, apperrors.NewValidationError("type", "unknown config type %q", t)
	}
}
