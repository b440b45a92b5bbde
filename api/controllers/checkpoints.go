package controllers

import (
	"net/http"
	"time"

	"github.com/sudsyhq/sudsy-backend/api/responses"
	"github.com/sudsyhq/sudsy-backend/api/validators"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type checkpointRequest struct {
	Tag        string `json:"tag" validate:"required"`
	Checkpoint string `json:"checkpoint" validate:"required"`
	OperatorID string `json:"operatorId" validate:"required"`
	Notes      string `json:"notes"`
}

type checkpointResponse struct {
	Tag            string    `json:"tag"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Timestamp      time.Time `json:"timestamp"`
}

// ApplyCheckpoint records one operator scan and reports the transition it
// produced. Out-of-order scans are accepted and reported as no-ops.
func ApplyCheckpoint(svc drops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req checkpointRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		checkpoint, err := enums.ParseCheckpointType(req.Checkpoint)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkpoint"))
			return
		}

		result, err := svc.ApplyCheckpoint(ctx, drops.CheckpointInput{
			Tag:            req.Tag,
			CheckpointType: checkpoint,
			OperatorID:     req.OperatorID,
			Notes:          req.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkpointResponse{
			Tag:            req.Tag,
			PreviousStatus: string(result.PreviousStatus),
			NewStatus:      string(result.NewStatus),
			Timestamp:      result.Timestamp,
		})
	}
}
