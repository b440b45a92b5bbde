package controllers

import (
	"net/http"
	"time"

	"github.com/sudsyhq/sudsy-backend/api/responses"
	"github.com/sudsyhq/sudsy-backend/api/validators"
	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
	"github.com/sudsyhq/sudsy-backend/pkg/pagination"
)

type auditEntryView struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Action     string    `json:"action"`
	OldValue   string    `json:"oldValue,omitempty"`
	NewValue   string    `json:"newValue,omitempty"`
	Operator   string    `json:"operator,omitempty"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recordedAt"`
}

type auditListResponse struct {
	Entries    []auditEntryView `json:"entries"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// ListAudit returns audit entries newest first with cursor pagination.
func ListAudit(recorder *audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query := r.URL.Query()

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		entries, nextCursor, err := recorder.List(ctx, audit.ListFilter{
			EntityType: query.Get("entityType"),
			EntityID:   query.Get("entityId"),
			Action:     query.Get("action"),
		}, pagination.Params{
			Limit:  limit,
			Cursor: query.Get("cursor"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := auditListResponse{Entries: make([]auditEntryView, 0, len(entries)), NextCursor: nextCursor}
		for _, entry := range entries {
			resp.Entries = append(resp.Entries, auditView(entry))
		}
		responses.WriteSuccess(w, resp)
	}
}

func auditView(entry models.AuditLogEntry) auditEntryView {
	return auditEntryView{
		ID:         entry.ID.String(),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		OldValue:   entry.OldValue,
		NewValue:   entry.NewValue,
		Operator:   entry.Operator,
		Source:     entry.Source,
		RecordedAt: entry.RecordedAt,
	}
}
