package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sudsyhq/sudsy-backend/internal/sla"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// SLASweepEvery is how often the pipeline is checked for stuck drops.
const SLASweepEvery = 2 * time.Hour

type slaSweeper interface {
	Sweep(ctx context.Context) (*sla.Result, error)
}

type SLASweepJobParams struct {
	Logger  *logger.Logger
	Sweeper slaSweeper
}

func NewSLASweepJob(params SLASweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sla sweeper required")
	}
	return &slaSweepJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type slaSweepJob struct {
	logg    *logger.Logger
	sweeper slaSweeper
}

func (j *slaSweepJob) Name() string { return "sla-sweep" }

func (j *slaSweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sla sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":         result.Scanned,
		"stuck":           result.Stuck,
		"forgotten":       result.Forgotten,
		"tickets_created": result.TicketsCreated,
		"alerts_sent":     result.AlertsSent,
		"item_errors":     len(result.Errors),
	})
	j.logg.Info(logCtx, "sla sweep complete")
	return nil
}
