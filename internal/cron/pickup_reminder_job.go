package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// PickupReminderEvery is how often ready-and-waiting drops are re-nudged.
const PickupReminderEvery = 24 * time.Hour

type reminderSweeper interface {
	Sweep(ctx context.Context) (*drops.ReminderResult, error)
}

type PickupReminderJobParams struct {
	Logger  *logger.Logger
	Sweeper reminderSweeper
}

func NewPickupReminderJob(params PickupReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("reminder sweeper required")
	}
	return &pickupReminderJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type pickupReminderJob struct {
	logg    *logger.Logger
	sweeper reminderSweeper
}

func (j *pickupReminderJob) Name() string { return "pickup-reminders" }

func (j *pickupReminderJob) Run(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("pickup reminder sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":     result.Scanned,
		"sent":        result.Sent,
		"item_errors": len(result.Errors),
	})
	j.logg.Info(logCtx, "pickup reminder sweep complete")
	return nil
}
