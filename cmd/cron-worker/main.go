package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/billing"
	"github.com/sudsyhq/sudsy-backend/internal/cron"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/internal/issues"
	"github.com/sudsyhq/sudsy-backend/internal/members"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/internal/sla"
	"github.com/sudsyhq/sudsy-backend/pkg/config"
	"github.com/sudsyhq/sudsy-backend/pkg/db"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
	"github.com/sudsyhq/sudsy-backend/pkg/metrics"
	"github.com/sudsyhq/sudsy-backend/pkg/migrate"
	"github.com/sudsyhq/sudsy-backend/pkg/redis"
	"github.com/sudsyhq/sudsy-backend/pkg/sendgrid"
	"github.com/sudsyhq/sudsy-backend/pkg/square"
	"github.com/sudsyhq/sudsy-backend/pkg/twilio"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	twilioClient, err := twilio.NewClient(cfg.Twilio, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create twilio client", err)
		os.Exit(1)
	}
	sendgridClient, err := sendgrid.NewClient(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sendgrid client", err)
		os.Exit(1)
	}
	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	memberRepo := members.NewRepository(dbClient.DB())
	dropRepo := drops.NewRepository(dbClient.DB())
	issueRepo := issues.NewRepository(dbClient.DB())

	recorder, err := audit.NewRecorder(audit.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	chatChannel, err := notify.NewChatChannel(twilioClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create chat channel", err)
		os.Exit(1)
	}
	emailChannel, err := notify.NewEmailChannel(sendgridClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create email channel", err)
		os.Exit(1)
	}
	dispatcher, err := notify.NewDispatcher(chatChannel, emailChannel, recorder, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	issueService, err := issues.NewService(issueRepo, recorder, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create issue service", err)
		os.Exit(1)
	}

	slaSweeper, err := sla.NewSweeper(dropRepo, issueService, dispatcher, sla.OpsContact{
		Phone: cfg.Twilio.OpsNumber,
		Email: cfg.Sendgrid.OpsEmail,
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sla sweeper", err)
		os.Exit(1)
	}
	dunningSweeper, err := billing.NewDunningSweeper(memberRepo, dispatcher, squareClient, recorder, logg, cfg.Plan.BillingPortalURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create dunning sweeper", err)
		os.Exit(1)
	}
	reminderSweeper, err := drops.NewReminderSweeper(dropRepo, memberRepo, dispatcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create pickup reminder sweeper", err)
		os.Exit(1)
	}

	slaJob, err := cron.NewSLASweepJob(cron.SLASweepJobParams{Logger: logg, Sweeper: slaSweeper})
	if err != nil {
		logg.Error(context.Background(), "failed to create sla sweep job", err)
		os.Exit(1)
	}
	dunningJob, err := cron.NewDunningJob(cron.DunningJobParams{Logger: logg, Sweeper: dunningSweeper})
	if err != nil {
		logg.Error(context.Background(), "failed to create dunning job", err)
		os.Exit(1)
	}
	reminderJob, err := cron.NewPickupReminderJob(cron.PickupReminderJobParams{Logger: logg, Sweeper: reminderSweeper})
	if err != nil {
		logg.Error(context.Background(), "failed to create pickup reminder job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(
		cron.Entry{Job: slaJob, Every: cron.SLASweepEvery},
		cron.Entry{Job: dunningJob, Every: cron.DunningEvery},
		cron.Entry{Job: reminderJob, Every: cron.PickupReminderEvery},
	)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, cron.WorkerLockKey, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
