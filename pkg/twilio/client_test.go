package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sudsyhq/sudsy-backend/pkg/config"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
)

func testConfig(baseURL string) config.TwilioConfig {
	return config.TwilioConfig{
		AccountSID:  "AC00000000000000000000000000000000",
		AuthToken:   "secret-token",
		FromNumber:  "+15550001111",
		BaseURL:     baseURL,
		HTTPTimeout: 2 * time.Second,
	}
}

func TestNewClientValidatesCredentials(t *testing.T) {
	cfg := testConfig("")
	cfg.AccountSID = " "
	if _, err := NewClient(cfg, nil); err == nil {
		t.Fatal("expected error for missing account sid")
	}

	cfg = testConfig("")
	cfg.AuthToken = ""
	if _, err := NewClient(cfg, nil); err == nil {
		t.Fatal("expected error for missing auth token")
	}

	cfg = testConfig("")
	cfg.FromNumber = ""
	if _, err := NewClient(cfg, nil); err == nil {
		t.Fatal("expected error for missing from number")
	}
}

func TestSendMessageSuccess(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm

		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC00000000000000000000000000000000" || pass != "secret-token" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123","status":"queued","to":"+15557654321"}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	msg, err := client.SendMessage(context.Background(), "+15557654321", "your bag arrived")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if msg.SID != "SM123" {
		t.Fatalf("expected sid SM123, got %q", msg.SID)
	}
	if gotForm.Get("To") != "+15557654321" || gotForm.Get("From") != "+15550001111" {
		t.Fatalf("unexpected form values: %v", gotForm)
	}
	if gotForm.Get("Body") != "your bag arrived" {
		t.Fatalf("unexpected body: %q", gotForm.Get("Body"))
	}
}

func TestSendMessageRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM456","status":"queued"}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	msg, err := client.SendMessage(context.Background(), "+15557654321", "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if msg.SID != "SM456" {
		t.Fatalf("expected sid SM456, got %q", msg.SID)
	}
}

func TestSendMessageDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"invalid 'To' phone number","status":400}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.SendMessage(context.Background(), "+1555", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeChannelFailure) {
		t.Fatalf("expected channel failure code, got %v", err)
	}
}

func TestSendMessageValidatesInput(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost:0"), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.SendMessage(context.Background(), "", "hello"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty recipient, got %v", err)
	}
	if _, err := client.SendMessage(context.Background(), "+15557654321", " "); err == nil {
		t.Fatal("expected validation error for blank body")
	}
}

func TestValidateSignature(t *testing.T) {
	client, err := NewClient(testConfig(""), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	requestURL := "https://sudsy.example.com/webhooks/chat"
	form := url.Values{}
	form.Set("From", "+15557654321")
	form.Set("Body", "2")
	form.Set("MessageSid", "SM789")

	mac := hmac.New(sha1.New, []byte("secret-token"))
	mac.Write([]byte(requestURL + "Body2From+15557654321MessageSidSM789"))
	valid := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !client.ValidateSignature(requestURL, form, valid) {
		t.Fatal("expected signature to validate")
	}
	if client.ValidateSignature(requestURL, form, "bogus") {
		t.Fatal("expected bogus signature to fail")
	}
	if client.ValidateSignature(requestURL, form, "") {
		t.Fatal("expected empty signature to fail")
	}
}
