package scraper

import (
	"context"
	"errors"
	"fmt"

	"monitor-shopify/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrStatusNotOK é retornado quando a loja responde com status diferente de 200
	ErrStatusNotOK = errors.New("status da resposta diferente de 200 OK")
	// ErrMissingField é retornado quando falta um campo obrigatório no JSON
	ErrMissingField = errors.New("campo obrigatório ausente")
)

// FetchError indica falha de rede, corpo não JSON ou campo obrigatório ausente
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("erro ao buscar %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SearchHit é um resultado leve da busca, sem variantes
type SearchHit struct {
	ID    int64
	Title string
	URL   string
	Brand string
	Image string
	Price decimal.Decimal
}

// Catalog define as operações de leitura de uma plataforma de loja
type Catalog interface {
	FetchProduct(ctx context.Context, url string) (*models.Product, error)
	FetchCollection(ctx context.Context, url string) ([]models.Product, error)
	FetchSearchResults(ctx context.Context, url, query string) ([]SearchHit, error)
}

// Prober valida URLs antes do cadastro de um monitor
type Prober interface {
	ProbeStorefront(ctx context.Context, url string) bool
	ProbeCollection(ctx context.Context, url string) bool
	ProbeProduct(ctx context.Context, url string) bool
}
