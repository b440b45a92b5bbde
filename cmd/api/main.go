package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/sudsyhq/sudsy-backend/api/routes"
	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/billing"
	"github.com/sudsyhq/sudsy-backend/internal/conversation"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/internal/issues"
	"github.com/sudsyhq/sudsy-backend/internal/members"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/internal/sla"
	"github.com/sudsyhq/sudsy-backend/pkg/config"
	"github.com/sudsyhq/sudsy-backend/pkg/db"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
	"github.com/sudsyhq/sudsy-backend/pkg/migrate"
	"github.com/sudsyhq/sudsy-backend/pkg/redis"
	"github.com/sudsyhq/sudsy-backend/pkg/sendgrid"
	"github.com/sudsyhq/sudsy-backend/pkg/square"
	"github.com/sudsyhq/sudsy-backend/pkg/twilio"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	dropService, err := drops.NewService(dropRepo, memberRepo, dispatcher, recorder, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create drop service", err)
		os.Exit(1)
	}

	chatHandler, err := conversation.NewHandler(
		memberRepo,
		dropService,
		issueService,
		squareClient,
		redisClient,
		recorder,
		logg,
		cfg.Plan.BillingPortalURL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversation handler", err)
		os.Exit(1)
	}

	webhookService, err := billing.NewWebhookService(memberRepo, dispatcher, recorder, redisClient, logg, cfg.Plan.DropsPerCycle)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing webhook service", err)
		os.Exit(1)
	}
	dunningSweeper, err := billing.NewDunningSweeper(memberRepo, dispatcher, squareClient, recorder, logg, cfg.Plan.BillingPortalURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create dunning sweeper", err)
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
	reminderSweeper, err := drops.NewReminderSweeper(dropRepo, memberRepo, dispatcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create pickup reminder sweeper", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DBPinger:    dbClient,
			RedisPinger: redisClient,

			DropService: dropService,
			DropRepo:    dropRepo,
			IssueSvc:    issueService,
			Audit:       recorder,

			Chat:          chatHandler,
			ChatValidator: twilioClient,
			ChatPublicURL: cfg.App.WebhookURL("/api/v1/webhooks/chat"),

			SquareWebhooks: webhookService,
			SquareClient:   squareClient,
			SquareURL:      cfg.App.WebhookURL("/api/v1/webhooks/square"),

			SLASweeper:    slaSweeper,
			Dunning:       dunningSweeper,
			PickupSweeper: reminderSweeper,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
