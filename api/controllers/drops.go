package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/api/responses"
	"github.com/sudsyhq/sudsy-backend/api/validators"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type createDropRequest struct {
	MemberID   string `json:"memberId" validate:"required,uuid"`
	Tag        string `json:"tag" validate:"required"`
	OperatorID string `json:"operatorId" validate:"required"`
}

type dropResponse struct {
	ID              string     `json:"id"`
	Tag             string     `json:"tag"`
	MemberID        string     `json:"memberId"`
	Status          string     `json:"status"`
	StatusChangedAt time.Time  `json:"statusChangedAt"`
	HasOpenIssue    bool       `json:"hasOpenIssue"`
	Scans           []scanView `json:"scans,omitempty"`
}

type scanView struct {
	Checkpoint string    `json:"checkpoint"`
	OperatorID string    `json:"operatorId"`
	ScannedAt  time.Time `json:"scannedAt"`
	Notes      string    `json:"notes,omitempty"`
}

func dropView(drop *models.Drop, scans []models.ScanEvent) dropResponse {
	resp := dropResponse{
		ID:              drop.ID.String(),
		Tag:             drop.Tag,
		MemberID:        drop.MemberID.String(),
		Status:          string(drop.Status),
		StatusChangedAt: drop.StatusChangedAt,
		HasOpenIssue:    drop.HasOpenIssue,
	}
	for _, scan := range scans {
		resp.Scans = append(resp.Scans, scanView{
			Checkpoint: string(scan.CheckpointType),
			OperatorID: scan.OperatorID,
			ScannedAt:  scan.ScannedAt,
			Notes:      scan.Notes,
		})
	}
	return resp
}

// CreateDrop registers a bag intake on behalf of an operator.
func CreateDrop(svc drops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createDropRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		memberID, err := uuid.Parse(req.MemberID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid member id"))
			return
		}

		drop, err := svc.Create(ctx, drops.CreateInput{
			MemberID:   memberID,
			Tag:        req.Tag,
			OperatorID: req.OperatorID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dropView(drop, nil))
	}
}

// DropDetail returns one drop with its full scan history.
func DropDetail(repo drops.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tag := chi.URLParam(r, "tag")
		drop, err := repo.FindByTag(ctx, tag)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		scans, err := repo.ListScans(ctx, drop.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dropView(drop, scans))
	}
}

type correctDropRequest struct {
	Status     string `json:"status" validate:"required"`
	OperatorID string `json:"operatorId" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

// CorrectDrop applies an administrative status override.
func CorrectDrop(svc drops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req correctDropRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseDropStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		result, err := svc.CorrectStatus(ctx, drops.CorrectionInput{
			Tag:        chi.URLParam(r, "tag"),
			NewStatus:  status,
			OperatorID: req.OperatorID,
			Reason:     req.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkpointResponse{
			Tag:            chi.URLParam(r, "tag"),
			PreviousStatus: string(result.PreviousStatus),
			NewStatus:      string(result.NewStatus),
			Timestamp:      result.Timestamp,
		})
	}
}
