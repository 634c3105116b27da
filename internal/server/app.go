// Package server builds the application's dependencies and runs the HTTP
// server until it is told to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/analysis"
	"github.com/JakeFAU/callify-backend/internal/api"
	"github.com/JakeFAU/callify-backend/internal/bland"
	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/clock/system"
	"github.com/JakeFAU/callify-backend/internal/config"
	"github.com/JakeFAU/callify-backend/internal/contact"
	collyfetcher "github.com/JakeFAU/callify-backend/internal/fetcher/colly"
	"github.com/JakeFAU/callify-backend/internal/hash/sha256"
	"github.com/JakeFAU/callify-backend/internal/id/uuid"
	"github.com/JakeFAU/callify-backend/internal/llm/openai"
	"github.com/JakeFAU/callify-backend/internal/logging"
	"github.com/JakeFAU/callify-backend/internal/mailer"
	"github.com/JakeFAU/callify-backend/internal/orchestrator"
	"github.com/JakeFAU/callify-backend/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/callify-backend/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/callify-backend/internal/publisher/pubsub"
	"github.com/JakeFAU/callify-backend/internal/quota"
	"github.com/JakeFAU/callify-backend/internal/retention"
	"github.com/JakeFAU/callify-backend/internal/script"
	firestorestore "github.com/JakeFAU/callify-backend/internal/storage/firestore"
	gcsstorage "github.com/JakeFAU/callify-backend/internal/storage/gcs"
	localstorage "github.com/JakeFAU/callify-backend/internal/storage/local"
	memorystorage "github.com/JakeFAU/callify-backend/internal/storage/memory"
	pgstore "github.com/JakeFAU/callify-backend/internal/storage/postgres"
	redisstore "github.com/JakeFAU/callify-backend/internal/storage/redis"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

// recordStore is implemented by every record backend.
type recordStore interface {
	callify.QuotaStore
	callify.AnalysisStore
	callify.CallLogStore
	callify.ContactStore
}

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	janitor   *retention.Janitor
	ready     map[string]api.ReadinessCheck
	closers   []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Application.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{
		cfg:    cfg,
		logger: logger,
		ready:  make(map[string]api.ReadinessCheck),
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Int("daily_limit", cfg.Quota.DailyLimit),
	)

	if err = app.build(ctx); err != nil {
		app.closeAll(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	tp, err := telemetry.InitTracerProvider(ctx, a.cfg.Application.ServiceName, a.cfg.Application.Version)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.onClose("tracer", tp.Shutdown)

	clock := system.New()
	ids := uuid.New()

	records, err := a.setupRecords(ctx, clock, ids)
	if err != nil {
		return err
	}
	quotas, err := a.setupQuotas(records)
	if err != nil {
		return err
	}
	blobs, err := a.setupStorage(ctx)
	if err != nil {
		return err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}

	calls := orchestrator.New(orchestrator.Deps{
		Gate:     quota.NewGate(quotas, clock, a.cfg.Quota.DailyLimit, a.logger.Named("quota")),
		Resolver: analysis.NewResolver(records, a.logger.Named("resolver")),
		Scripts: script.New(script.Config{
			Persona:       a.cfg.Script.Persona,
			Company:       a.cfg.Script.Company,
			PreviewLength: a.cfg.Script.PreviewLength,
		}),
		Voice: bland.New(bland.Config{
			APIKey:  a.cfg.Bland.APIKey,
			BaseURL: a.cfg.Bland.BaseURL,
			Timeout: a.cfg.BlandTimeout(),
		}, a.logger.Named("bland")),
		CallLogs:  records,
		Publisher: publisher,
		Clock:     clock,
	}, orchestrator.Config{Topic: a.cfg.PubSub.TopicName}, a.logger.Named("orchestrator"))

	analyzer := analysis.NewAnalyzer(
		a.analyzerConfig(),
		openai.New(openai.Config{
			APIKey:  a.cfg.OpenAI.APIKey,
			BaseURL: a.cfg.OpenAI.BaseURL,
			Model:   a.cfg.OpenAI.Model,
			Timeout: a.cfg.OpenAITimeout(),
		}),
		a.setupFetcher(),
		blobs,
		sha256.New(),
		records,
		a.logger.Named("analyzer"),
	)

	if !a.cfg.SMTP.Configured() {
		a.logger.Warn("SMTP is not configured, contact submissions will fail")
	}
	contacts := contact.NewService(records, mailer.New(mailer.Config{
		Host:     a.cfg.SMTP.Host,
		Port:     a.cfg.SMTP.Port,
		Secure:   a.cfg.SMTP.Secure,
		Username: a.cfg.SMTP.Username,
		Password: a.cfg.SMTP.Password,
		From:     a.cfg.SMTP.From,
		To:       a.cfg.SMTP.To,
	}), a.logger.Named("contact"))

	a.janitor = a.newJanitor(quotas, records, clock)

	a.apiServer = api.NewServer(api.Deps{
		Calls:    calls,
		Analyzer: analyzer,
		Contact:  contacts,
		Ready:    a.ready,
	}, api.Config{
		AuthEnabled:       a.cfg.Auth.Enabled,
		APIKey:            a.cfg.Auth.APIKey,
		RequestTimeout:    time.Duration(a.cfg.Server.RequestTimeoutSeconds) * time.Second,
		TrustProxyHeaders: a.cfg.Server.TrustProxyHeaders,
		ProxyHops:         a.cfg.Server.ProxyHops,
	}, a.logger.Named("api"))

	return nil
}

// Cleanup runs one retention pass. The janitor is built even when periodic
// retention is disabled so the cleanup command can use it.
func (a *App) Cleanup(ctx context.Context) retention.Report {
	return a.janitor.RunOnce(ctx)
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

func (a *App) newJanitor(quotas callify.QuotaStore, analyses callify.AnalysisStore, clock callify.Clock) *retention.Janitor {
	return retention.NewJanitor(quotas, analyses, clock, retention.Config{
		QuotaDays:    a.cfg.Retention.QuotaDays,
		AnalysisDays: a.cfg.Retention.AnalysisDays,
		Interval:     a.cfg.RetentionInterval(),
	}, a.logger.Named("retention"))
}

func (a *App) setupRecords(ctx context.Context, clock callify.Clock, ids callify.IDGenerator) (recordStore, error) {
	switch a.cfg.Store.Backend {
	case "postgres":
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             a.cfg.Database.DSN,
			MaxConns:        a.cfg.Database.MaxConns,
			MinConns:        a.cfg.Database.MinConns,
			MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
			AutoMigrate:     a.cfg.Database.AutoMigrate,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		a.onClose("postgres", func(context.Context) error {
			store.Close()
			return nil
		})
		a.ready["postgres"] = store.Ping
		a.logger.Info("using postgres record store", zap.Bool("auto_migrate", a.cfg.Database.AutoMigrate))
		return store, nil
	case "firestore":
		store, err := firestorestore.New(ctx, firestorestore.Config{
			ProjectID:  a.cfg.Firestore.ProjectID,
			DatabaseID: a.cfg.Firestore.DatabaseID,
		})
		if err != nil {
			return nil, fmt.Errorf("firestore store init failed: %w", err)
		}
		a.onClose("firestore", func(context.Context) error { return store.Close() })
		a.logger.Info("using firestore record store",
			zap.String("project", a.cfg.Firestore.ProjectID),
			zap.String("database", a.cfg.Firestore.DatabaseID),
		)
		return store, nil
	default:
		a.logger.Warn("using in-memory record store, data is lost on restart")
		return memorystorage.NewStore(clock, ids), nil
	}
}

func (a *App) setupQuotas(records recordStore) (callify.QuotaStore, error) {
	if a.cfg.Quota.Backend != "redis" {
		return records, nil
	}
	store, err := redisstore.New(a.redisConfig())
	if err != nil {
		return nil, fmt.Errorf("redis quota store init failed: %w", err)
	}
	a.onClose("redis", func(context.Context) error { return store.Close() })
	a.ready["redis"] = store.Ping
	a.logger.Info("using redis quota store", zap.String("key_prefix", a.cfg.Redis.KeyPrefix))
	return store, nil
}

// redisConfig keeps quota keys as long as retention would keep quota records.
func (a *App) redisConfig() redisstore.Config {
	return redisstore.Config{
		URL:       a.cfg.Redis.URL,
		KeyPrefix: a.cfg.Redis.KeyPrefix,
		TTL:       a.cfg.QuotaKeyTTL(),
	}
}

// analyzerConfig shares the script persona so stored and assembled scripts
// introduce the same caller.
func (a *App) analyzerConfig() analysis.AnalyzerConfig {
	return analysis.AnalyzerConfig{
		Persona:        a.cfg.Script.Persona,
		SnapshotPrefix: a.cfg.Storage.Prefix,
		FetchTimeout:   a.cfg.FetchTimeout(),
	}
}

func (a *App) setupStorage(ctx context.Context) (callify.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "gcs":
		blobs, err := gcsstorage.Dial(ctx, gcsstorage.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.onClose("gcs", func(context.Context) error { return blobs.Close() })
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.Bucket))
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(a.cfg.Storage.Local)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.Local.BaseDir))
		return blobs, nil
	default:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (callify.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	publisher, err := gcppublisher.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.onClose("pubsub", func(context.Context) error { return publisher.Close() })
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return publisher, nil
}

func (a *App) setupFetcher() analysis.TextFetcher {
	if !a.cfg.Fetch.Enabled {
		a.logger.Info("website fetching disabled, analyses use the domain only")
		return nil
	}
	pacer := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.Fetch.DomainRPS,
		DefaultBurst: a.cfg.Fetch.DomainBurst,
	})
	a.logger.Info("using colly website fetcher",
		zap.String("user_agent", a.cfg.Fetch.UserAgent),
		zap.Float64("domain_rps", a.cfg.Fetch.DomainRPS),
	)
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Fetch.UserAgent,
		Timeout:   a.cfg.FetchTimeout(),
		MaxChars:  a.cfg.Fetch.MaxChars,
	}, pacer)
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the HTTP server and the retention janitor, blocking until the
// context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Retention.Enabled {
		go a.janitor.Run(ctx)
		a.logger.Info("retention janitor started", zap.Duration("interval", a.cfg.RetentionInterval()))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve http: %w", err)
	default:
		return nil
	}
}

// Close releases clients in reverse order of construction.
func (a *App) Close(ctx context.Context) {
	a.closeAll(ctx)
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
}

func (a *App) closeAll(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
