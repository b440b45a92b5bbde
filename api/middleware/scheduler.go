package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/sudsyhq/sudsy-backend/api/responses"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

// SchedulerTokenHeader carries the shared secret the external scheduler
// presents when invoking sweep endpoints.
const SchedulerTokenHeader = "X-Scheduler-Token"

// SchedulerAuth rejects sweep requests that do not carry the shared secret.
// Rejected requests produce no side effects beyond the access log.
func SchedulerAuth(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if secret == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scheduler secret not configured"))
				return
			}
			presented := r.Header.Get(SchedulerTokenHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid scheduler token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
