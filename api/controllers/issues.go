package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/api/responses"
	"github.com/sudsyhq/sudsy-backend/api/validators"
	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/issues"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type openIssueRequest struct {
	MemberID    string `json:"memberId" validate:"required,uuid"`
	DropID      string `json:"dropId" validate:"omitempty,uuid"`
	Type        string `json:"type" validate:"required"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority"`
	OperatorID  string `json:"operatorId" validate:"required"`
}

type issueResponse struct {
	TicketID string `json:"ticketId"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

func issueView(issue *models.Issue) issueResponse {
	return issueResponse{
		TicketID: issue.TicketID,
		Type:     string(issue.Type),
		Status:   string(issue.Status),
		Priority: string(issue.Priority),
	}
}

// OpenIssue opens a support ticket on behalf of an operator.
func OpenIssue(svc issues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req openIssueRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		memberID, err := uuid.Parse(req.MemberID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid member id"))
			return
		}
		issueType, err := enums.ParseIssueType(req.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid issue type"))
			return
		}

		input := issues.OpenInput{
			MemberID:    memberID,
			Type:        issueType,
			Description: req.Description,
			Priority:    enums.IssuePriority(req.Priority),
			Source:      audit.SourceAdmin,
		}
		if req.DropID != "" {
			dropID, err := uuid.Parse(req.DropID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid drop id"))
				return
			}
			input.DropID = &dropID
		}

		issue, err := svc.Open(ctx, input)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) && issue != nil {
				responses.WriteSuccess(w, issueView(issue))
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issueView(issue))
	}
}

type resolveIssueRequest struct {
	OperatorID string `json:"operatorId" validate:"required"`
}

// ResolveIssue closes out a ticket.
func ResolveIssue(svc issues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req resolveIssueRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ticketID := chi.URLParam(r, "ticketId")
		if err := svc.Resolve(ctx, ticketID, req.OperatorID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"ticketId": ticketID, "status": string(enums.IssueStatusResolved)})
	}
}
