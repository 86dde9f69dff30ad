package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mbshop/storefront/api"
	"github.com/mbshop/storefront/bus"
	"github.com/mbshop/storefront/checkout"
	"github.com/mbshop/storefront/config"
	"github.com/mbshop/storefront/nav"
	"github.com/mbshop/storefront/notify"
	storeotel "github.com/mbshop/storefront/otel"
	"github.com/mbshop/storefront/persist"
	"github.com/mbshop/storefront/session"
)

// Keys kept next to the session slices. Sign-out does not purge them.
const (
	keyLocation  = "location"
	keySessionID = "session"

	instrumentationName = "github.com/mbshop/storefront"
)

// AddPersistentFlags registers the flags every storefront command accepts.
func AddPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.String("config", "", "Path to storefront.yaml (default: ./storefront.yaml, then ~/.storefront/config.yaml)")
	flags.String("store-path", "", "Path to the SQLite session store (default: ~/.storefront/storefront.db)")
	flags.String("api-url", "", "Backend base URL (default: http://localhost:4000)")
	flags.Bool("verbose", false, "Enable verbose/debug logging")
	flags.Bool("quiet", false, "Suppress all output except errors")
}

// app is one CLI invocation: a hydrated store wired to persistence, the
// journal, telemetry and the backend. Each command opens and closes it.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
	ctx    context.Context

	kv      *persist.SQLiteKV
	journal *bus.SQLiteJournal
	events  *bus.MemBus
	store   *session.Store
	syncer  *persist.Syncer
	history *nav.History
	toast   *notify.Toast
	flow    *checkout.Flow

	tracing  *storeotel.TracingHandler
	tracer   *sdktrace.TracerProvider
	meter    *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
	shutdown sync.Once
}

// syncWriter serialises writes from the command and background handlers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(explicit)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}

	if storePath, _ := cmd.Flags().GetString("store-path"); strings.TrimSpace(storePath) != "" {
		cfg.Store.Path = strings.TrimSpace(storePath)
	}
	if apiURL, _ := cmd.Flags().GetString("api-url"); strings.TrimSpace(apiURL) != "" {
		cfg.API.BaseURL = strings.TrimSpace(apiURL)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openApp builds the app for cmd. The caller must close it.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)
	mode, err := cfg.Mode(nil)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	rules, err := cfg.PricingRules()
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := &app{cfg: cfg, logger: logger, ctx: ctx}
	a.out = &syncWriter{w: cmd.OutOrStdout()}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		a.out = io.Discard
	}

	a.kv, err = persist.NewSQLiteKV(persist.SQLiteKVConfig{DSN: cfg.Store.Path})
	if err != nil {
		return nil, exitError(exitRuntime, "opening session store: %v", err)
	}
	a.journal, err = bus.NewSQLiteJournal(bus.SQLiteJournalConfig{
		DSN:            cfg.Store.Path,
		RetentionAge:   cfg.Store.JournalRetention,
		RetentionCount: cfg.Store.JournalMaxEntries,
	})
	if err != nil {
		_ = a.kv.Close()
		return nil, exitError(exitRuntime, "opening journal: %v", err)
	}
	if err := a.journal.Prune(ctx); err != nil {
		logger.Warn("journal prune failed", "error", err)
	}

	sessionID := a.sessionID(ctx)
	state, _ := persist.Hydrate(ctx, a.kv, mode, logger)
	start, _, err := a.kv.Get(ctx, keyLocation)
	if err != nil {
		logger.Warn("could not read last location", "error", err)
	}
	a.history = nav.NewHistory(start)

	if err := a.openTelemetry(ctx); err != nil {
		a.closeStores()
		return nil, exitError(exitConfig, "%v", err)
	}
	metrics, err := storeotel.NewMetricsHandler(a.meter.Meter(instrumentationName))
	if err != nil {
		a.closeStores()
		return nil, exitError(exitRuntime, "creating metrics: %v", err)
	}

	a.syncer = persist.NewSyncer(persist.SyncerConfig{KV: a.kv, Logger: logger})
	a.events = bus.NewMemBus(bus.MemBusConfig{})
	journalSub := bus.NewJournalSubscriber(a.journal, logger)
	a.store = session.NewStore(session.StoreConfig{
		Initial:   state,
		SessionID: sessionID,
		Handlers: []session.EventHandler{
			a.syncer.Handle,
			journalSub.Handle,
			metrics.Handle,
			a.tracing.Handle,
			a.events.Handle,
		},
		Logger: logger,
	})
	a.ctx = a.tracing.Start(ctx, sessionID)

	client, err := api.NewHTTPClient(api.HTTPClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Retry: api.RetryPolicy{
			MaxAttempts: cfg.API.Retry.MaxAttempts,
			Backoff:     cfg.API.Retry.Backoff,
		},
		Tracer: a.tracer.Tracer(instrumentationName + "/api"),
		Logger: logger,
	})
	if err != nil {
		a.close(err)
		return nil, exitError(exitConfig, "%v", err)
	}

	a.toast = notify.NewToast(notify.NewWriter(a.out))
	a.flow, err = checkout.NewFlow(checkout.FlowConfig{
		Store:     a.store,
		API:       client,
		Navigator: a.history,
		Locator:   a.history,
		Notifier:  a.toast,
		Pricing:   &rules,
		Logger:    logger,
	})
	if err != nil {
		a.close(err)
		return nil, exitError(exitRuntime, "%v", err)
	}
	return a, nil
}

// sessionID returns the persisted journal session id, creating one on
// first use.
func (a *app) sessionID(ctx context.Context) string {
	id, ok, err := a.kv.Get(ctx, keySessionID)
	if err == nil && ok && strings.TrimSpace(id) != "" {
		return id
	}
	id = uuid.NewString()
	if err := a.kv.Set(ctx, keySessionID, id); err != nil {
		a.logger.Warn("could not persist session id", "error", err)
	}
	return id
}

func (a *app) openTelemetry(ctx context.Context) error {
	pcfg := storeotel.ProviderConfig{
		Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
		ServiceName: a.cfg.Telemetry.ServiceName,
	}
	tp, err := storeotel.NewTracerProvider(ctx, pcfg)
	if err != nil {
		return err
	}
	a.tracer = tp
	a.tracing = storeotel.NewTracingHandler(tp.Tracer(instrumentationName))
	a.meter, a.reader = storeotel.NewMeterProvider(pcfg)
	return nil
}

// close persists the location, flushes telemetry and releases the stores.
// err marks the session span failed.
func (a *app) close(err error) {
	a.shutdown.Do(func() {
		ctx := context.Background()
		if a.history != nil && a.kv != nil {
			if serr := a.kv.Set(ctx, keyLocation, a.history.CurrentPath()); serr != nil {
				a.logger.Warn("could not persist location", "error", serr)
			}
		}
		if a.events != nil {
			_ = a.events.Close()
		}
		if a.tracing != nil && a.store != nil {
			a.tracing.End(a.store.SessionID(), err)
		}
		if a.reader != nil {
			if merr := storeotel.LogMetrics(ctx, a.reader, a.logger); merr != nil {
				a.logger.Debug("metrics unavailable", "error", merr)
			}
		}
		if a.meter != nil {
			_ = a.meter.Shutdown(ctx)
		}
		if a.tracer != nil {
			if terr := a.tracer.Shutdown(ctx); terr != nil && !errors.Is(terr, context.Canceled) {
				a.logger.Warn("trace export failed", "error", terr)
			}
		}
		a.closeStores()
	})
}

func (a *app) closeStores() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
}

// withApp opens the app, runs fn, and maps its error to an exit code.
func withApp(cmd *cobra.Command, op string, fn func(a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	err = fn(a)
	a.close(err)
	return exitFor(op, err)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// enter checks the gate for step the way a page load would, navigating to
// the unmet step when it is closed.
func (a *app) enter(step checkout.Step) error {
	d := checkout.Guard(a.store.State(), step)
	if d.Allowed {
		return nil
	}
	a.history.Navigate(d.Redirect)
	a.printf("Next: %s\n", d.Redirect)
	return checkout.ErrCheckoutIncomplete
}

// AddCommands registers every storefront subcommand on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(
		NewStateCmd(),
		NewModeCmd(),
		NewVisitCmd(),
		NewCartCmd(),
		NewCheckoutCmd(),
		NewSigninCmd(),
		NewSignupCmd(),
		NewSignoutCmd(),
		NewShippingCmd(),
		NewPaymentCmd(),
		NewOrderCmd(),
		NewHistoryCmd(),
	)
}
