package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"monitor-shopify/internal/database"
	"monitor-shopify/internal/metrics"
	"monitor-shopify/internal/models"
	"monitor-shopify/internal/scraper"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnknownKind é retornado para monitores com tipo não reconhecido
var ErrUnknownKind = errors.New("tipo de monitor desconhecido")

// MonitorSource fornece a lista de monitores cadastrados
type MonitorSource interface {
	ListMonitors(ctx context.Context) ([]models.Monitor, error)
}

// Notifier envia o aviso de mudança para o destino do monitor
type Notifier interface {
	Notify(ctx context.Context, monitor models.Monitor, product models.Product, classification models.Classification) error
}

// Outcome é o resultado do processamento de um monitor em uma verificação
type Outcome struct {
	Monitor  models.Monitor
	Products int
	Notified int
	Err      error
}

// Reason classifica o erro do Outcome para logs e métricas
func (o Outcome) Reason() string {
	var fetchErr *scraper.FetchError
	var storeErr *database.StoreError
	switch {
	case o.Err == nil:
		return ""
	case errors.As(o.Err, &fetchErr):
		return "fetch"
	case errors.As(o.Err, &storeErr):
		return "store"
	case errors.Is(o.Err, ErrUnknownKind):
		return "kind"
	default:
		return "other"
	}
}

// Scheduler gerencia a verificação periódica dos monitores
type Scheduler struct {
	// mu garante que só um monitor é reconciliado por vez, seja pela passada ou pelo /check
	mu sync.Mutex

	monitors   MonitorSource
	catalog    scraper.Catalog
	reconciler *Reconciler
	notifier   Notifier
	interval   time.Duration
	delay      time.Duration
	logger     zerolog.Logger
}

// New cria um novo Scheduler
func New(monitors MonitorSource, catalog scraper.Catalog, reconciler *Reconciler, notifier Notifier, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		monitors:   monitors,
		catalog:    catalog,
		reconciler: reconciler,
		notifier:   notifier,
		interval:   interval,
		logger:     logger,
	}
}

// WithDelay define uma pausa entre monitores dentro de uma mesma verificação
func (s *Scheduler) WithDelay(d time.Duration) *Scheduler {
	s.delay = d
	return s
}

// Start roda as verificações até o contexto ser cancelado.
// A primeira verificação acontece imediatamente.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("Monitor iniciado")

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Erro ao buscar monitores")
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Monitor encerrado")
			return nil
		case <-time.After(s.interval):
		}
	}
}

// Tick faz uma passada completa pelos monitores cadastrados.
// A lista é relida do store a cada chamada. Erros de um monitor ficam no seu Outcome
// e nunca interrompem a passada; o cancelamento do contexto só é observado entre monitores.
func (s *Scheduler) Tick(ctx context.Context) ([]Outcome, error) {
	log := s.logger.With().Str("tick", uuid.NewString()).Logger()
	start := time.Now()

	monitors, err := s.monitors.ListMonitors(ctx)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("monitors", len(monitors)).Msg("Iniciando verificação")

	outcomes := make([]Outcome, 0, len(monitors))
	interrupted := false
	for i, m := range monitors {
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.delay):
			}
		}
		if ctx.Err() != nil {
			log.Info().Int("pending", len(monitors)-i).Msg("Verificação interrompida")
			interrupted = true
			break
		}

		outcome := s.process(ctx, m, log)
		if outcome.Err != nil {
			log.Error().
				Err(outcome.Err).
				Int64("monitor", m.ID).
				Str("kind", string(m.Kind)).
				Str("reason", outcome.Reason()).
				Msg("Erro ao monitorar")
			metrics.IncMonitorFailure(string(m.Kind), outcome.Reason())
		}
		outcomes = append(outcomes, outcome)
	}

	elapsed := time.Since(start)
	if !interrupted {
		metrics.ObserveTick(elapsed)
	}
	log.Debug().Int("processed", len(outcomes)).Dur("elapsed", elapsed).Msg("Verificação concluída")

	return outcomes, nil
}

// ProcessMonitor verifica um monitor específico (usado pelo comando /check)
func (s *Scheduler) ProcessMonitor(ctx context.Context, m models.Monitor) Outcome {
	return s.process(ctx, m, s.logger)
}

func (s *Scheduler) process(ctx context.Context, m models.Monitor, log zerolog.Logger) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	// uma busca em andamento não é cancelada no meio
	ctx = context.WithoutCancel(ctx)

	log.Info().
		Int64("monitor", m.ID).
		Msgf("Monitorando %s URL: %s %s", m.Kind, m.URL, m.Query)

	outcome := Outcome{Monitor: m}

	switch m.Kind {
	case models.KindProduct:
		product, err := s.catalog.FetchProduct(ctx, m.URL)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Err = s.check(ctx, m, *product, &outcome, log)

	case models.KindCollection:
		products, err := s.catalog.FetchCollection(ctx, m.URL)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		for _, product := range products {
			if err := s.check(ctx, m, product, &outcome, log); err != nil {
				outcome.Err = err
				return outcome
			}
		}

	case models.KindSearch:
		hits, err := s.catalog.FetchSearchResults(ctx, m.URL, m.Query)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		for _, hit := range hits {
			product, err := s.catalog.FetchProduct(ctx, hit.URL)
			if err != nil {
				outcome.Err = err
				return outcome
			}
			if err := s.check(ctx, m, *product, &outcome, log); err != nil {
				outcome.Err = err
				return outcome
			}
		}

	default:
		outcome.Err = fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}

	return outcome
}

// check reconcilia um produto e notifica se alguma variante mudou.
// Falha na notificação só é registrada: as variantes já foram gravadas.
func (s *Scheduler) check(ctx context.Context, m models.Monitor, product models.Product, outcome *Outcome, log zerolog.Logger) error {
	outcome.Products++

	result, err := s.reconciler.Reconcile(ctx, m, product)
	if err != nil {
		return err
	}
	if !result.Changed {
		return nil
	}

	if err := s.notifier.Notify(ctx, m, product, result.Classification); err != nil {
		log.Error().
			Err(err).
			Int64("monitor", m.ID).
			Int64("product", product.ID).
			Msg("Erro ao enviar notificação")
		metrics.IncNotification(false)
		return nil
	}

	log.Info().
		Int64("monitor", m.ID).
		Int64("product", product.ID).
		Str("classification", string(result.Classification)).
		Msg("Notificação enviada")
	metrics.IncNotification(true)
	outcome.Notified++
	return nil
}
