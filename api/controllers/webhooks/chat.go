package webhooks

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sudsyhq/sudsy-backend/internal/conversation"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
	"github.com/sudsyhq/sudsy-backend/pkg/twilio"
)

type conversationHandler interface {
	Handle(ctx context.Context, msg conversation.Inbound) (string, error)
}

type signatureValidator interface {
	ValidateSignature(requestURL string, form url.Values, signature string) bool
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// ChatWebhook receives inbound Twilio messages and replies with TwiML.
// Unsigned or mis-signed requests are rejected before any state is touched.
func ChatWebhook(handler conversationHandler, validator signatureValidator, publicURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseForm(); err != nil {
			writeTwimlError(w, http.StatusBadRequest)
			return
		}

		signature := twilio.RequestSignature(r)
		if signature == "" || !validator.ValidateSignature(publicURL, r.PostForm, signature) {
			if logg != nil {
				logg.Warn(ctx, "chat webhook signature rejected")
			}
			writeTwimlError(w, http.StatusForbidden)
			return
		}

		msg := conversation.Inbound{
			From:       r.PostForm.Get("From"),
			Body:       r.PostForm.Get("Body"),
			MessageSID: r.PostForm.Get("MessageSid"),
		}
		numMedia, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
		for i := 0; i < numMedia; i++ {
			if mediaURL := r.PostForm.Get(fmt.Sprintf("MediaUrl%d", i)); mediaURL != "" {
				msg.MediaURLs = append(msg.MediaURLs, mediaURL)
			}
		}

		reply, err := handler.Handle(ctx, msg)
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "chat webhook handling failed", err)
			}
			// Twilio retries on non-2xx; a handler error here is not
			// recoverable by redelivery, so acknowledge with a generic reply.
			if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				writeTwiml(w, "Something went wrong on our end. Please try again in a bit.")
				return
			}
			writeTwimlError(w, http.StatusServiceUnavailable)
			return
		}

		writeTwiml(w, reply)
	}
}

func writeTwiml(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_ = xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}

func writeTwimlError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(twimlResponse{})
}
