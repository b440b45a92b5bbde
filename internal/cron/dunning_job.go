package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sudsyhq/sudsy-backend/internal/billing"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// DunningEvery is how often past-due members are advanced along the ladder.
const DunningEvery = 24 * time.Hour

type dunningSweeper interface {
	Sweep(ctx context.Context) (*billing.DunningResult, error)
}

type DunningJobParams struct {
	Logger  *logger.Logger
	Sweeper dunningSweeper
}

func NewDunningJob(params DunningJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("dunning sweeper required")
	}
	return &dunningJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type dunningJob struct {
	logg    *logger.Logger
	sweeper dunningSweeper
}

func (j *dunningJob) Name() string { return "dunning" }

func (j *dunningJob) Run(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("dunning sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":     result.Scanned,
		"day3_sent":   result.Day3Sent,
		"day7_sent":   result.Day7Sent,
		"paused":      result.Paused,
		"item_errors": len(result.Errors),
	})
	j.logg.Info(logCtx, "dunning sweep complete")
	return nil
}
