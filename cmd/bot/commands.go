package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"monitor-shopify/config"
	"monitor-shopify/internal/bot"
	"monitor-shopify/internal/database"
	"monitor-shopify/internal/logger"
	"monitor-shopify/internal/metrics"
	"monitor-shopify/internal/models"
	"monitor-shopify/internal/monitor"
	"monitor-shopify/internal/scraper"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// app guarda o estado compartilhado entre os subcomandos
type app struct {
	envFile string
	cfg     *config.Config
	log     zerolog.Logger
	closer  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "bot",
		Short:         "Monitora lojas Shopify e avisa no Telegram sobre produtos novos ou alterados",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "arquivo .env com as variáveis de ambiente")

	var dryRun bool
	tick := &cobra.Command{
		Use:   "tick",
		Short: "Executa uma única verificação de todos os monitores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.tick(cmd.Context(), cmd.OutOrStdout(), dryRun)
		},
	}
	tick.Flags().BoolVar(&dryRun, "dry-run", false, "registra as notificações no log em vez de enviar ao Telegram")

	monitors := &cobra.Command{
		Use:   "monitors",
		Short: "Lista os monitores cadastrados e quantas variantes cada um já encontrou",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listMonitors(cmd.Context(), cmd.OutOrStdout())
		},
	}

	root.AddCommand(tick, monitors)
	return root
}

func (a *app) load() error {
	// Carregar variáveis de ambiente
	envErr := godotenv.Load(a.envFile)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL inválido: %w", err)
	}
	if envErr != nil {
		log.Debug().Str("file", a.envFile).Msg("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	a.cfg, a.log, a.closer = cfg, log, closer
	return nil
}

func (a *app) openDB() (*database.DB, error) {
	db, err := database.New(a.cfg.DatabasePath, a.log)
	if err != nil {
		return nil, fmt.Errorf("erro ao inicializar banco de dados: %w", err)
	}
	return db, nil
}

func (a *app) shopify() *scraper.Shopify {
	return scraper.NewShopify(
		&http.Client{Timeout: a.cfg.HTTPTimeout},
		a.cfg.UserAgent,
		scraper.WithMaxPages(a.cfg.CollectionMaxPages),
	)
}

func (a *app) scheduler(db *database.DB, notifier monitor.Notifier) *monitor.Scheduler {
	return monitor.New(
		db,
		a.shopify(),
		monitor.NewReconciler(db, a.log),
		notifier,
		a.cfg.CheckInterval,
		a.log,
	).WithDelay(a.cfg.RequestDelay)
}

// run inicia o bot: monitoramento em background, comandos do Telegram e métricas
func (a *app) run(ctx context.Context) error {
	if err := a.cfg.RequireTelegram(); err != nil {
		return err
	}

	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	telegramBot, err := bot.Init(a.cfg.TelegramBotToken, a.log)
	if err != nil {
		return fmt.Errorf("erro ao inicializar bot do Telegram: %w", err)
	}

	sched := a.scheduler(db, bot.NewNotifier(telegramBot, a.log))
	handlers := bot.NewHandlers(telegramBot, db, a.shopify(), sched, a.cfg.TelegramChatID, a.log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sched.Start(ctx) })
	g.Go(func() error { return bot.SetupCommands(ctx, telegramBot, handlers) })

	if a.cfg.MetricsAddr != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("erro ao registrar métricas: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("Servidor de métricas iniciado")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.log.Info().Msg("Bot em execução")
	err = g.Wait()
	a.log.Info().Msg("Encerrando bot...")
	return err
}

// tick executa uma verificação avulsa e imprime o resultado de cada monitor
func (a *app) tick(ctx context.Context, out io.Writer, dryRun bool) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var notifier monitor.Notifier = logNotifier{log: a.log}
	if !dryRun {
		if err := a.cfg.RequireTelegram(); err != nil {
			return err
		}
		telegramBot, err := bot.Init(a.cfg.TelegramBotToken, a.log)
		if err != nil {
			return fmt.Errorf("erro ao inicializar bot do Telegram: %w", err)
		}
		notifier = bot.NewNotifier(telegramBot, a.log)
	}

	outcomes, err := a.scheduler(db, notifier).Tick(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIPO\tPRODUTOS\tNOTIFICAÇÕES\tERRO")
	for _, o := range outcomes {
		errText := "-"
		if o.Err != nil {
			errText = o.Reason() + ": " + o.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", o.Monitor.ID, o.Monitor.Kind, o.Products, o.Notified, errText)
	}
	return w.Flush()
}

func (a *app) listMonitors(ctx context.Context, out io.Writer) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	monitors, err := db.ListMonitors(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIPO\tURL\tBUSCA\tCHAT\tVARIANTES")
	for _, m := range monitors {
		count, err := db.CountVariants(ctx, m.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n", m.ID, m.Kind, m.URL, m.Query, m.Destination, count)
	}
	return w.Flush()
}

// logNotifier registra as notificações no log em vez de enviá-las
type logNotifier struct {
	log zerolog.Logger
}

func (n logNotifier) Notify(_ context.Context, m models.Monitor, p models.Product, c models.Classification) error {
	text, err := bot.PlainText(bot.RenderProduct(m, p, c))
	if err != nil {
		return err
	}
	n.log.Info().Int64("monitor", m.ID).Int64("chat", m.Destination).Msg(text)
	return nil
}
