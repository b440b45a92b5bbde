package notify

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

// messageTemplate pairs the chat/email body with the email subject for one
// kind. Chat sends only the body; email sends both.
type messageTemplate struct {
	subject string
	body    string
}

var templateSources = map[enums.NotificationKind]messageTemplate{
	enums.NotificationPickupConfirm: {
		subject: "We picked up your laundry",
		body:    "We've got bag {{.Tag}}. It's on its way to the wash. We'll let you know the moment it's ready.",
	},
	enums.NotificationDropReady: {
		subject: "Your laundry is ready",
		body:    "Bag {{.Tag}} is clean, folded, and ready for pickup at your locker.",
	},
	enums.NotificationPickupReminder: {
		subject: "Reminder: your laundry is waiting",
		body:    "Just a nudge: bag {{.Tag}} has been ready for a while. Grab it whenever suits you.",
	},
	enums.NotificationPaymentDay3: {
		subject: "Payment issue on your account",
		body:    "Hi {{.Name}}, your last payment didn't go through. Please update your card so your service isn't interrupted: {{.BillingLink}}",
	},
	enums.NotificationPaymentDay7: {
		subject: "Action needed: payment still failing",
		body:    "Hi {{.Name}}, we still couldn't charge your card. Your subscription will be paused in 3 days unless the payment is fixed: {{.BillingLink}}",
	},
	enums.NotificationOpsAlert: {
		subject: "Ops alert: {{.Summary}}",
		body:    "{{.Summary}}\n{{.Detail}}",
	},
}

type compiledTemplate struct {
	subject *template.Template
	body    *template.Template
}

type renderedMessage struct {
	Subject string
	Body    string
}

var catalogue = func() map[enums.NotificationKind]compiledTemplate {
	out := make(map[enums.NotificationKind]compiledTemplate, len(templateSources))
	for kind, src := range templateSources {
		out[kind] = compiledTemplate{
			subject: template.Must(template.New(string(kind) + ".subject").Parse(src.subject)),
			body:    template.Must(template.New(string(kind) + ".body").Parse(src.body)),
		}
	}
	return out
}()

// render resolves the templates for kind with the supplied data.
func render(kind enums.NotificationKind, data map[string]any) (*renderedMessage, error) {
	tmpl, ok := catalogue[kind]
	if !ok {
		return nil, fmt.Errorf("no template for notification kind %q", kind)
	}

	var subject, body strings.Builder
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render %s body: %w", kind, err)
	}
	return &renderedMessage{Subject: subject.String(), Body: body.String()}, nil
}
