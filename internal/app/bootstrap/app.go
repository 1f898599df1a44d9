package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/atma-clinic-ai/internal/api/router"
	"github.com/wolfman30/atma-clinic-ai/internal/archive"
	"github.com/wolfman30/atma-clinic-ai/internal/billing"
	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/compliance"
	appconfig "github.com/wolfman30/atma-clinic-ai/internal/config"
	"github.com/wolfman30/atma-clinic-ai/internal/conversation"
	"github.com/wolfman30/atma-clinic-ai/internal/events"
	"github.com/wolfman30/atma-clinic-ai/internal/http/handlers"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/notify"
	observemetrics "github.com/wolfman30/atma-clinic-ai/internal/observability/metrics"
	"github.com/wolfman30/atma-clinic-ai/internal/reminders"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

type schedulingStore interface {
	scheduling.CalendarStore
	scheduling.AppointmentStore
}

// App holds every wired component shared by the API and the worker.
type App struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry

	Pool  *pgxpool.Pool
	Redis *redis.Client

	ClinicStore  clinic.Store
	Directory    *clinic.Directory
	Appointments schedulingStore
	Booking      *scheduling.BookingCoordinator
	Statuses     *scheduling.StatusService
	Finder       *scheduling.SlotFinder
	Biller       *billing.Biller
	States       conversation.StateStore
	Messenger    messaging.Messenger
	Engine       *conversation.Engine
	Notifier     *reminders.Notifier
	Outbox       *events.OutboxStore
	Deliverer    *events.Deliverer
	Deduper      events.Deduper

	MessagingMetrics *observemetrics.MessagingMetrics
	JobMetrics       *observemetrics.JobMetrics
}

// New wires the application. A nil awsCfg disables S3 archival, SES and
// Bedrock. Postgres and Redis are optional; without them the in-memory
// stores are used, which only suits development and simulation.
func New(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	app := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.MessagingMetrics = observemetrics.NewMessagingMetrics(app.Registry)
	app.JobMetrics = observemetrics.NewJobMetrics(app.Registry)
	conversationMetrics := observemetrics.NewConversationMetrics(app.Registry)

	pool, err := BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Pool = pool
	app.Redis = BuildRedisClient(ctx, cfg, logger, true)
	app.States = BuildStateStore(app.Redis, logger)

	var billingStore billing.Store
	if pool != nil {
		app.ClinicStore = clinic.NewPostgresStore(pool)
		app.Appointments = scheduling.NewPostgresStore(pool)
		billingStore = billing.NewPostgresStore(pool)
	} else {
		app.ClinicStore = clinic.NewMemoryStore()
		app.Appointments = scheduling.NewMemoryStore()
		billingStore = billing.NewMemoryStore()
	}
	app.Directory = clinic.NewDirectory(app.ClinicStore, logger)

	messenger, mode := BuildOutboundMessenger(cfg, logger)
	app.Messenger = messenger
	logger.Info("whatsapp messenger ready", "mode", mode)

	app.Biller = billing.NewBiller(billingStore, app.Appointments, app.ClinicStore, messenger, logger)
	app.Booking = scheduling.NewBookingCoordinator(app.Appointments, cfg.AppointmentDuration, logger)
	app.Statuses = scheduling.NewStatusService(app.Appointments, app.Biller, logger)
	app.Finder = scheduling.NewSlotFinder(
		scheduling.NewWorkCalendar(app.Appointments),
		app.Appointments,
		scheduling.WithDuration(cfg.AppointmentDuration),
	)

	email, provider := BuildEmailSender(cfg, awsCfg, logger)
	logger.Info("staff email ready", "provider", provider)
	staff := notify.NewStaffNotifier(email, app.ClinicStore, logger)

	var publisher events.Publisher
	if pool != nil {
		app.Outbox = events.NewOutboxStore(pool)
		app.Deliverer = events.NewDeliverer(app.Outbox, staff, logger)
		publisher = app.Outbox
	} else {
		publisher = events.NewInlinePublisher(staff, logger)
	}

	if cfg.WebhookDedup {
		if pool != nil {
			app.Deduper = events.NewProcessedStore(pool)
		} else {
			app.Deduper = events.NewMemoryDeduper(24 * time.Hour)
		}
	}

	nlu, err := BuildNLU(ctx, cfg, awsCfg, conversationMetrics, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	engineCfg := conversation.EngineConfig{
		Directory:    app.Directory,
		States:       app.States,
		NLU:          nlu,
		Finder:       app.Finder,
		Booking:      app.Booking,
		Statuses:     app.Statuses,
		Appointments: app.Appointments,
		Balances:     app.Biller,
		Messenger:    messenger,
		Publisher:    publisher,
		Auditor:      buildAuditor(pool, logger),
		Metrics:      conversationMetrics,
		Delivery:     app.MessagingMetrics,
		HorizonDays:  cfg.SlotHorizonDays,
		MaxResults:   cfg.SlotMaxResults,
		OfferTTL:     cfg.OfferTTL,
		NPSTTL:       cfg.NPSStateTTL,
		Logger:       logger,
	}
	if store := buildArchive(cfg, awsCfg, logger); store != nil {
		engineCfg.Archive = store
	}
	app.Engine = conversation.NewEngine(engineCfg)

	app.Notifier = reminders.NewNotifier(reminders.Config{
		Appointments:  app.Appointments,
		Clinic:        app.ClinicStore,
		States:        app.States,
		Messenger:     messenger,
		PublicBaseURL: cfg.PublicBaseURL,
		Lead:          cfg.ReminderLead,
		Window:        cfg.ReminderWindow,
		NPSTTL:        cfg.NPSStateTTL,
		Logger:        logger,
	})
	return app, nil
}

func buildAuditor(pool *pgxpool.Pool, logger *logging.Logger) compliance.Auditor {
	if pool == nil {
		return compliance.NewLogAuditor(logger)
	}
	return compliance.NewAuditService(stdlib.OpenDBFromPool(pool))
}

func buildArchive(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *archive.Store {
	if awsCfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return nil
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		// LocalStack serves buckets by path.
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	logger.Info("conversation archive enabled", "bucket", cfg.ArchiveBucket)
	return archive.NewStore(client, cfg.ArchiveBucket, logger)
}

// Router builds the HTTP handler for cmd/api.
func (a *App) Router() http.Handler {
	cfg := a.Config
	clinicHandler := clinic.NewHandler(a.Directory, a.Logger)
	if a.Pool != nil {
		clinicHandler.WithInsights(
			clinic.NewStatsHandler(clinic.NewStatsRepository(a.Pool), a.Logger),
			clinic.NewDashboardHandler(clinic.NewDashboardRepository(a.Pool), a.Registry, a.Logger),
		)
	}

	return router.New(&router.Config{
		Logger: a.Logger,
		WhatsAppWebhook: handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{
			Engine:        a.Engine,
			SigningKey:    WebhookSigningKey(cfg),
			PublicBaseURL: cfg.PublicBaseURL,
			Deduper:       a.Deduper,
			Metrics:       a.MessagingMetrics,
			Logger:        a.Logger,
		}),
		AppointmentLinks: handlers.NewAppointmentConfirmHandler(a.Statuses, a.Logger),
		ClinicHandler:    clinicHandler,
		SchedulingHandler: scheduling.NewHandler(scheduling.HandlerConfig{
			Calendar:     a.Appointments,
			Appointments: a.Appointments,
			Booking:      a.Booking,
			Statuses:     a.Statuses,
			Finder:       a.Finder,
			Locator:      professionalLocator{store: a.ClinicStore},
			Logger:       a.Logger,
		}),
		BillingHandler:     billing.NewHandler(a.Biller, a.Logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ConfirmRateLimit:   cfg.ConfirmRateLimit,
		ConfirmRateBurst:   cfg.ConfirmRateBurst,
		Readiness:          a.readiness(),
	})
}

func (a *App) readiness() map[string]router.ReadinessCheck {
	checks := map[string]router.ReadinessCheck{}
	if a.Pool != nil {
		checks["postgres"] = a.Pool.Ping
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Jobs lists the periodic work run by cmd/worker. The outbox is drained by
// the API process, see StartDeliverer.
func (a *App) Jobs() []reminders.Job {
	return []reminders.Job{
		{Name: "appointment_reminders", Run: a.Notifier.SendAppointmentReminders},
		{Name: "followups", Run: a.Notifier.SendFollowUps},
		{Name: "monthly_charges", Run: a.Biller.GenerateMonthlyCharges},
		{Name: "payment_reminders", Run: func(ctx context.Context) (int, error) {
			return a.Biller.SendPaymentReminders(ctx, a.Config.PaymentReminderAfterDays)
		}},
	}
}

// StartDeliverer drains the outbox in the background until ctx is done.
// It is a no-op without Postgres, where events are delivered inline.
func (a *App) StartDeliverer(ctx context.Context) {
	if a.Deliverer == nil {
		return
	}
	go a.Deliverer.Start(ctx)
}

// Close releases the pool and the Redis client.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// professionalLocator resolves a professional's time zone through their account.
type professionalLocator struct {
	store clinic.Store
}

func (l professionalLocator) ProfessionalLocation(ctx context.Context, id string) (*time.Location, error) {
	pro, err := l.store.Professional(ctx, id)
	if errors.Is(err, clinic.ErrProfessionalNotFound) {
		return nil, scheduling.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load professional: %w", err)
	}
	acc, err := l.store.Account(ctx, pro.AccountID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load account: %w", err)
	}
	return acc.Location(), nil
}
