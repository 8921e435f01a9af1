package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Availability representa a disponibilidade de uma variante em três estados
type Availability int

const (
	Unavailable Availability = 0
	Available   Availability = 1
	Unknown     Availability = -1
)

// AvailabilityFromJSON converte o valor bruto do campo "available" da loja.
// Apenas os booleanos true/false são reconhecidos; qualquer outro valor vira Unknown.
func AvailabilityFromJSON(raw []byte) Availability {
	switch string(raw) {
	case "true":
		return Available
	case "false":
		return Unavailable
	default:
		return Unknown
	}
}

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Variant é uma unidade comprável de um produto (tamanho, cor...)
type Variant struct {
	ID        int64
	Title     string
	Price     decimal.Decimal
	Available Availability
}

// Product é o resultado normalizado de uma busca na loja.
// É reconstruído a cada verificação e nunca é persistido inteiro.
type Product struct {
	ID       int64
	Title    string
	URL      string
	Brand    string
	Category string
	Price    decimal.Decimal
	Image    string
	Variants []Variant
}

// VariantRecord é o último estado observado de uma variante para um monitor
type VariantRecord struct {
	MonitorID int64
	ProductID int64
	VariantID int64
	Available Availability
	Price     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Differs indica se a variante buscada difere do registro salvo
func (r VariantRecord) Differs(v Variant) bool {
	return r.Available != v.Available || !r.Price.Equal(v.Price)
}

// Classification é o resultado da comparação de uma variante
type Classification string

const (
	New       Classification = "new"
	Updated   Classification = "update"
	Unchanged Classification = "unchanged"
)
