package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sudsyhq/sudsy-backend/internal/billing"
	"github.com/sudsyhq/sudsy-backend/internal/conversation"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fakeChatHandler struct {
	reply   string
	err     error
	handled []conversation.Inbound
}

func (f *fakeChatHandler) Handle(ctx context.Context, msg conversation.Inbound) (string, error) {
	f.handled = append(f.handled, msg)
	return f.reply, f.err
}

type fixedValidator struct{ ok bool }

func (f fixedValidator) ValidateSignature(string, url.Values, string) bool { return f.ok }

func chatRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "sig")
	return req
}

func TestChatWebhookRepliesWithTwiml(t *testing.T) {
	handler := &fakeChatHandler{reply: "Bag B007 is checked in!"}
	h := ChatWebhook(handler, fixedValidator{ok: true}, "https://api.example.com/webhooks/chat", testLogger())

	form := url.Values{}
	form.Set("From", "+15557654321")
	form.Set("Body", "B007")
	form.Set("MessageSid", "SM123")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://media.example.com/1.jpg")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, chatRequest(form))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Message>Bag B007 is checked in!</Message>") {
		t.Fatalf("expected twiml message, got %q", rec.Body.String())
	}
	if len(handler.handled) != 1 {
		t.Fatalf("expected one inbound, got %d", len(handler.handled))
	}
	inbound := handler.handled[0]
	if inbound.From != "+15557654321" || inbound.MessageSID != "SM123" {
		t.Fatalf("unexpected inbound %+v", inbound)
	}
	if len(inbound.MediaURLs) != 1 || inbound.MediaURLs[0] != "https://media.example.com/1.jpg" {
		t.Fatalf("media urls lost: %+v", inbound.MediaURLs)
	}
}

func TestChatWebhookRejectsBadSignature(t *testing.T) {
	handler := &fakeChatHandler{reply: "hi"}
	h := ChatWebhook(handler, fixedValidator{ok: false}, "https://api.example.com/webhooks/chat", testLogger())

	form := url.Values{}
	form.Set("From", "+15557654321")
	form.Set("Body", "1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, chatRequest(form))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if len(handler.handled) != 0 {
		t.Fatal("rejected request must not reach the handler")
	}
}

func TestChatWebhookSilentReplyForDuplicates(t *testing.T) {
	handler := &fakeChatHandler{reply: ""}
	h := ChatWebhook(handler, fixedValidator{ok: true}, "https://api.example.com/webhooks/chat", testLogger())

	form := url.Values{}
	form.Set("From", "+15557654321")
	form.Set("Body", "1")
	form.Set("MessageSid", "SM-dup")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, chatRequest(form))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Fatalf("duplicate must produce an empty response, got %q", rec.Body.String())
	}
}

type fakeBillingService struct {
	events []*billing.Event
	err    error
}

func (f *fakeBillingService) HandleEvent(ctx context.Context, event *billing.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeSigningClient struct{ secret string }

func (f fakeSigningClient) SigningSecret() string { return f.secret }

func signSquare(notificationURL string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSquareWebhookAcceptsSignedEvent(t *testing.T) {
	svc := &fakeBillingService{}
	notificationURL := "https://api.example.com/api/v1/webhooks/square"
	h := SquareWebhook(svc, fakeSigningClient{secret: "whsec"}, notificationURL, testLogger())

	payload, _ := json.Marshal(billing.Event{EventID: "evt-1", Type: "invoice.payment_failed"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader(payload))
	req.Header.Set("X-Square-Hmacsha256-Signature", signSquare(notificationURL, payload, "whsec"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.events) != 1 || svc.events[0].EventID != "evt-1" {
		t.Fatalf("unexpected events: %+v", svc.events)
	}
}

func TestSquareWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeBillingService{}
	h := SquareWebhook(svc, fakeSigningClient{secret: "whsec"}, "https://api.example.com/api/v1/webhooks/square", testLogger())

	payload, _ := json.Marshal(billing.Event{EventID: "evt-1", Type: "invoice.payment_failed"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader(payload))
	req.Header.Set("X-Square-Hmacsha256-Signature", "bogus")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("unverified event must not be processed")
	}
}

func TestSquareWebhookRejectsMissingSignature(t *testing.T) {
	svc := &fakeBillingService{}
	h := SquareWebhook(svc, fakeSigningClient{secret: "whsec"}, "https://api.example.com/api/v1/webhooks/square", testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
