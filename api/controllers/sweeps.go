package controllers

import (
	"context"
	"net/http"

	"github.com/sudsyhq/sudsy-backend/api/responses"
	"github.com/sudsyhq/sudsy-backend/internal/billing"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/internal/sla"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type slaSweeper interface {
	Sweep(ctx context.Context) (*sla.Result, error)
}

type dunningSweeper interface {
	Sweep(ctx context.Context) (*billing.DunningResult, error)
}

type reminderSweeper interface {
	Sweep(ctx context.Context) (*drops.ReminderResult, error)
}

type sweepSummary struct {
	Scanned int      `json:"scanned"`
	Actions int      `json:"actions"`
	Errors  []string `json:"errors,omitempty"`
}

// RunSLASweep triggers one pass of the stuck-drop detector.
func RunSLASweep(sweeper slaSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		result, err := sweeper.Sweep(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sweepSummary{
			Scanned: result.Scanned,
			Actions: result.TicketsCreated,
			Errors:  result.Errors,
		})
	}
}

// RunDunningSweep advances past-due members along the payment ladder.
func RunDunningSweep(sweeper dunningSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		result, err := sweeper.Sweep(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sweepSummary{
			Scanned: result.Scanned,
			Actions: result.Day3Sent + result.Day7Sent + result.Paused,
			Errors:  result.Errors,
		})
	}
}

// RunPickupReminderSweep nudges members whose laundry has been waiting.
func RunPickupReminderSweep(sweeper reminderSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		result, err := sweeper.Sweep(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sweepSummary{
			Scanned: result.Scanned,
			Actions: result.Sent,
			Errors:  result.Errors,
		})
	}
}
