package monitor

import (
	"context"
	"fmt"
	"time"

	"monitor-shopify/internal/metrics"
	"monitor-shopify/internal/models"

	"github.com/rs/zerolog"
)

// VariantStore guarda o último estado observado de cada variante.
// FindVariant retorna nil sem erro quando a variante não existe.
type VariantStore interface {
	FindVariant(ctx context.Context, monitorID, productID, variantID int64) (*models.VariantRecord, error)
	InsertVariant(ctx context.Context, r models.VariantRecord) error
	UpdateVariant(ctx context.Context, r models.VariantRecord) error
}

// Clock fornece o horário atual
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// ChangeResult resume a reconciliação de um produto.
// Classification é a da última variante nova ou alterada processada, não um agregado;
// fica Unchanged quando nada mudou.
type ChangeResult struct {
	Changed        bool
	Classification models.Classification
	New            int
	Updated        int
	Unchanged      int
}

// Reconciler compara um produto recém buscado com as variantes salvas
type Reconciler struct {
	store  VariantStore
	clock  Clock
	logger zerolog.Logger
}

// NewReconciler cria um novo Reconciler
func NewReconciler(store VariantStore, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		clock:  systemClock{},
		logger: logger,
	}
}

// WithClock substitui o relógio usado nos timestamps
func (r *Reconciler) WithClock(c Clock) *Reconciler {
	r.clock = c
	return r
}

// Reconcile classifica cada variante do produto como nova, alterada ou sem mudança
// e grava as diferenças no store.
func (r *Reconciler) Reconcile(ctx context.Context, monitor models.Monitor, product models.Product) (ChangeResult, error) {
	result := ChangeResult{Classification: models.Unchanged}

	for _, variant := range product.Variants {
		log := r.logger.With().
			Int64("monitor", monitor.ID).
			Int64("product", product.ID).
			Int64("variant", variant.ID).
			Logger()

		saved, err := r.store.FindVariant(ctx, monitor.ID, product.ID, variant.ID)
		if err != nil {
			return result, fmt.Errorf("erro ao buscar variante %d: %w", variant.ID, err)
		}

		now := r.clock.Now()

		switch {
		case saved == nil:
			log.Info().Str("price", variant.Price.String()).Stringer("available", variant.Available).Msg("Nova variante detectada")
			err := r.store.InsertVariant(ctx, models.VariantRecord{
				MonitorID: monitor.ID,
				ProductID: product.ID,
				VariantID: variant.ID,
				Available: variant.Available,
				Price:     variant.Price,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return result, fmt.Errorf("erro ao inserir variante %d: %w", variant.ID, err)
			}
			result.Changed = true
			result.Classification = models.New
			result.New++
			metrics.IncVariant(string(models.New))

		case saved.Differs(variant):
			log.Info().
				Str("old_price", saved.Price.String()).
				Str("price", variant.Price.String()).
				Stringer("old_available", saved.Available).
				Stringer("available", variant.Available).
				Msg("Mudança detectada na variante")
			saved.Available = variant.Available
			saved.Price = variant.Price
			saved.UpdatedAt = now
			if err := r.store.UpdateVariant(ctx, *saved); err != nil {
				return result, fmt.Errorf("erro ao atualizar variante %d: %w", variant.ID, err)
			}
			result.Changed = true
			result.Classification = models.Updated
			result.Updated++
			metrics.IncVariant(string(models.Updated))

		default:
			log.Debug().Msg("Nenhuma mudança na variante")
			result.Unchanged++
			metrics.IncVariant(string(models.Unchanged))
		}
	}

	return result, nil
}
