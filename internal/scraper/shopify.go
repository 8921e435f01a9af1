package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"monitor-shopify/internal/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// collectionPageSize é o limite máximo de produtos por página aceito por products.json
const collectionPageSize = 250

// Option personaliza o cliente Shopify
type Option func(s *Shopify)

// WithMaxPages define quantas páginas de products.json são lidas por coleção
func WithMaxPages(n int) Option {
	return func(s *Shopify) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// Shopify implementa o Catalog para lojas Shopify usando os endpoints JSON públicos
type Shopify struct {
	client    *http.Client
	userAgent string
	maxPages  int
}

// NewShopify cria uma nova instância do cliente Shopify
func NewShopify(client *http.Client, userAgent string, opts ...Option) *Shopify {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &Shopify{
		client:    client,
		userAgent: userAgent,
		maxPages:  1,
	}
	for _, op := range opts {
		op(s)
	}
	return s
}

// FetchProduct busca um único produto pelo endpoint <url>.js.
// Os preços desse endpoint vêm em centavos e são divididos por 100.
func (s *Shopify) FetchProduct(ctx context.Context, rawURL string) (*models.Product, error) {
	endpoint := strings.TrimRight(formatURL(rawURL), "/") + ".js"

	var payload productJS
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	switch {
	case payload.ID == nil:
		return nil, missing(endpoint, "id")
	case payload.Title == nil:
		return nil, missing(endpoint, "title")
	case payload.Variants == nil:
		return nil, missing(endpoint, "variants")
	}

	variants, err := normalizeVariants(endpoint, *payload.Variants, fromCents)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:       *payload.ID,
		Title:    *payload.Title,
		URL:      productURL(endpoint, payload.Handle),
		Brand:    payload.Vendor,
		Category: payload.Type,
		Price:    fromCents(payload.Price),
		Variants: variants,
	}
	if len(payload.Media) > 0 {
		product.Image = payload.Media[0].Src
	}

	return product, nil
}

// FetchCollection busca os produtos de uma coleção pelo endpoint products.json.
// Aqui os preços já vêm em formato decimal e não são divididos.
func (s *Shopify) FetchCollection(ctx context.Context, rawURL string) ([]models.Product, error) {
	base := formatURL(rawURL) + "products.json"

	var products []models.Product
	for page := 1; page <= s.maxPages; page++ {
		endpoint := fmt.Sprintf("%s?limit=%d&page=%d", base, collectionPageSize, page)

		var payload collectionJSON
		if err := s.getJSON(ctx, endpoint, &payload); err != nil {
			return nil, err
		}
		if payload.Products == nil {
			return nil, missing(endpoint, "products")
		}

		for _, p := range *payload.Products {
			product, err := p.normalize(endpoint)
			if err != nil {
				return nil, err
			}
			products = append(products, product)
		}

		if len(*payload.Products) < collectionPageSize {
			break
		}
	}

	return products, nil
}

// FetchSearchResults busca os resultados de /search/suggest.json para a query.
// Os resultados não trazem variantes: cada um deve ser buscado com FetchProduct.
func (s *Shopify) FetchSearchResults(ctx context.Context, rawURL, query string) ([]SearchHit, error) {
	endpoint, err := resolve(formatURL(rawURL), "/search/suggest.json",
		"q="+url.QueryEscape(query)+"&resources[type]=product&resources[options][unavailable_products]=hide")
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	var payload searchJSON
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.Resources == nil || payload.Resources.Results == nil || payload.Resources.Results.Products == nil {
		return nil, missing(endpoint, "resources.results.products")
	}

	hits := make([]SearchHit, 0, len(*payload.Resources.Results.Products))
	for _, p := range *payload.Resources.Results.Products {
		if p.ID == nil {
			return nil, missing(endpoint, "id")
		}
		hits = append(hits, SearchHit{
			ID:    *p.ID,
			Title: p.Title,
			URL:   productURL(endpoint, p.Handle),
			Brand: p.Vendor,
			Image: p.Image,
			Price: p.Price,
		})
	}

	return hits, nil
}

// ProbeStorefront verifica se a URL pertence a uma loja Shopify consultando /cart.js.
// Nunca retorna erro: qualquer falha significa false.
func (s *Shopify) ProbeStorefront(ctx context.Context, rawURL string) bool {
	endpoint, err := resolve(rawURL, "/cart.js", "")
	if err != nil {
		return false
	}

	var cart struct {
		Token *string `json:"token"`
	}
	if err := s.getJSON(ctx, endpoint, &cart); err != nil {
		return false
	}
	return cart.Token != nil
}

// ProbeCollection verifica se a URL é de uma coleção com pelo menos um produto
func (s *Shopify) ProbeCollection(ctx context.Context, rawURL string) bool {
	if !strings.Contains(rawURL, "/collections/") {
		return false
	}
	products, err := s.FetchCollection(ctx, rawURL)
	return err == nil && len(products) > 0
}

// ProbeProduct verifica se a URL é de um produto válido
func (s *Shopify) ProbeProduct(ctx context.Context, rawURL string) bool {
	if !strings.Contains(rawURL, "/products/") {
		return false
	}
	_, err := s.FetchProduct(ctx, rawURL)
	return err == nil
}

func (s *Shopify) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{URL: endpoint, Err: fmt.Errorf("%w: %d", ErrStatusNotOK, resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &FetchError{URL: endpoint, Err: fmt.Errorf("resposta não é JSON válido: %w", err)}
	}
	return nil
}

// formatURL remove a query string e garante a barra final
func formatURL(raw string) string {
	raw, _, _ = strings.Cut(raw, "?")
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw
}

// resolve monta uma URL absoluta no host de base com o caminho informado
func resolve(base, path, rawQuery string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL sem esquema ou host: %q", base)
	}
	return u.ResolveReference(&url.URL{Path: path, RawQuery: rawQuery}).String(), nil
}

func productURL(base, handle string) string {
	u, err := resolve(base, "/products/"+handle, "")
	if err != nil {
		return ""
	}
	return u
}

func fromCents(cents decimal.Decimal) decimal.Decimal {
	return cents.Shift(-2)
}

// normalizeVariants converte as variantes do JSON; o id é a chave do estado e não pode faltar
func normalizeVariants(endpoint string, vs []variantJSON, price func(decimal.Decimal) decimal.Decimal) ([]models.Variant, error) {
	if _, found := lo.Find(vs, func(v variantJSON) bool { return v.ID == nil }); found {
		return nil, missing(endpoint, "variants.id")
	}
	return lo.Map(vs, func(v variantJSON, _ int) models.Variant {
		return models.Variant{
			ID:        *v.ID,
			Title:     v.Title,
			Price:     price(v.Price),
			Available: models.AvailabilityFromJSON(v.Available),
		}
	}), nil
}

func missing(endpoint, field string) error {
	return &FetchError{URL: endpoint, Err: fmt.Errorf("%w: %s", ErrMissingField, field)}
}

type productJS struct {
	ID       *int64          `json:"id"`
	Title    *string         `json:"title"`
	Handle   string          `json:"handle"`
	Vendor   string          `json:"vendor"`
	Type     string          `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Media    []imageJSON     `json:"media"`
	Variants *[]variantJSON  `json:"variants"`
}

type imageJSON struct {
	Src string `json:"src"`
}

type collectionJSON struct {
	Products *[]collectionProductJSON `json:"products"`
}

type collectionProductJSON struct {
	ID          *int64        `json:"id"`
	Title       *string       `json:"title"`
	Handle      string        `json:"handle"`
	Vendor      string        `json:"vendor"`
	ProductType string        `json:"product_type"`
	Images      []imageJSON   `json:"images"`
	Variants    []variantJSON `json:"variants"`
}

type variantJSON struct {
	ID        *int64          `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Available json.RawMessage `json:"available"`
}

func (p collectionProductJSON) normalize(endpoint string) (models.Product, error) {
	if p.ID == nil {
		return models.Product{}, missing(endpoint, "id")
	}
	if p.Title == nil {
		return models.Product{}, missing(endpoint, "title")
	}

	variants, err := normalizeVariants(endpoint, p.Variants, func(d decimal.Decimal) decimal.Decimal { return d })
	if err != nil {
		return models.Product{}, err
	}

	product := models.Product{
		ID:       *p.ID,
		Title:    *p.Title,
		URL:      productURL(endpoint, p.Handle),
		Brand:    p.Vendor,
		Category: p.ProductType,
		Variants: variants,
	}
	if len(p.Variants) > 0 {
		product.Price = p.Variants[0].Price
	}
	if len(p.Images) > 0 {
		product.Image = p.Images[0].Src
	}
	return product, nil
}

type searchJSON struct {
	Resources *struct {
		Results *struct {
			Products *[]searchProductJSON `json:"products"`
		} `json:"results"`
	} `json:"resources"`
}

type searchProductJSON struct {
	ID     *int64          `json:"id"`
	Title  string          `json:"title"`
	Handle string          `json:"handle"`
	Vendor string          `json:"vendor"`
	Image  string          `json:"image"`
	Price  decimal.Decimal `json:"price"`
}
