package routes

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sudsyhq/sudsy-backend/api/controllers"
	webhookcontrollers "github.com/sudsyhq/sudsy-backend/api/controllers/webhooks"
	"github.com/sudsyhq/sudsy-backend/api/middleware"
	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/billing"
	"github.com/sudsyhq/sudsy-backend/internal/conversation"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/internal/issues"
	"github.com/sudsyhq/sudsy-backend/internal/sla"
	"github.com/sudsyhq/sudsy-backend/pkg/config"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type conversationHandler interface {
	Handle(ctx context.Context, msg conversation.Inbound) (string, error)
}

type chatSignatureValidator interface {
	ValidateSignature(requestURL string, form url.Values, signature string) bool
}

type squareBillingService interface {
	HandleEvent(ctx context.Context, event *billing.Event) error
}

type squareSigningClient interface {
	SigningSecret() string
}

type slaSweeper interface {
	Sweep(ctx context.Context) (*sla.Result, error)
}

type dunningSweeper interface {
	Sweep(ctx context.Context) (*billing.DunningResult, error)
}

type reminderSweeper interface {
	Sweep(ctx context.Context) (*drops.ReminderResult, error)
}

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    pinger
	RedisPinger pinger

	DropService drops.Service
	DropRepo    drops.Repository
	IssueSvc    issues.Service
	Audit       *audit.Recorder

	Chat          conversationHandler
	ChatValidator chatSignatureValidator
	ChatPublicURL string

	SquareWebhooks squareBillingService
	SquareClient   squareSigningClient
	SquareURL      string

	SLASweeper    slaSweeper
	Dunning       dunningSweeper
	PickupSweeper reminderSweeper
}

// NewRouter assembles the HTTP routes.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPinger))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/chat", webhookcontrollers.ChatWebhook(deps.Chat, deps.ChatValidator, deps.ChatPublicURL, logg))
		r.Post("/square", webhookcontrollers.SquareWebhook(deps.SquareWebhooks, deps.SquareClient, deps.SquareURL, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkpoints", controllers.ApplyCheckpoint(deps.DropService, logg))

		r.Route("/drops", func(r chi.Router) {
			r.Post("/", controllers.CreateDrop(deps.DropService, logg))
			r.Get("/{tag}", controllers.DropDetail(deps.DropRepo, logg))
			r.Post("/{tag}/correct", controllers.CorrectDrop(deps.DropService, logg))
		})

		r.Route("/issues", func(r chi.Router) {
			r.Post("/", controllers.OpenIssue(deps.IssueSvc, logg))
			r.Post("/{ticketId}/resolve", controllers.ResolveIssue(deps.IssueSvc, logg))
		})

		r.Get("/audit", controllers.ListAudit(deps.Audit, logg))

		r.Route("/sweeps", func(r chi.Router) {
			r.Use(middleware.SchedulerAuth(cfg.Scheduler.SharedSecret, logg))
			r.Post("/sla", controllers.RunSLASweep(deps.SLASweeper, logg))
			r.Post("/dunning", controllers.RunDunningSweep(deps.Dunning, logg))
			r.Post("/pickup-reminders", controllers.RunPickupReminderSweep(deps.PickupSweeper, logg))
		})
	})

	return r
}
