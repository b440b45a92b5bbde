package notify

import (
	"context"
	"fmt"

	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/twilio"
)

// Recipient carries the delivery identities for one target. Either field may
// be empty; a channel that has no usable identity reports itself unreachable
// so the dispatcher moves on.
type Recipient struct {
	MemberID string
	Phone    string
	Email    string
}

// Channel is one delivery transport.
type Channel interface {
	Name() enums.NotificationChannel
	Send(ctx context.Context, to Recipient, msg *renderedMessage) error
}

type chatSender interface {
	SendMessage(ctx context.Context, to, body string) (*twilio.Message, error)
}

type emailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type chatChannel struct {
	sender chatSender
}

// NewChatChannel wraps the chat provider client as a dispatch channel.
func NewChatChannel(sender chatSender) (Channel, error) {
	if sender == nil {
		return nil, fmt.Errorf("chat sender required")
	}
	return &chatChannel{sender: sender}, nil
}

func (c *chatChannel) Name() enums.NotificationChannel {
	return enums.ChannelChat
}

func (c *chatChannel) Send(ctx context.Context, to Recipient, msg *renderedMessage) error {
	if to.Phone == "" {
		return pkgerrors.New(pkgerrors.CodeChannelFailure, "recipient has no phone number")
	}
	_, err := c.sender.SendMessage(ctx, to.Phone, msg.Body)
	return err
}

type emailChannel struct {
	sender emailSender
}

// NewEmailChannel wraps the mail client as a dispatch channel.
func NewEmailChannel(sender emailSender) (Channel, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	return &emailChannel{sender: sender}, nil
}

func (c *emailChannel) Name() enums.NotificationChannel {
	return enums.ChannelEmail
}

func (c *emailChannel) Send(ctx context.Context, to Recipient, msg *renderedMessage) error {
	if to.Email == "" {
		return pkgerrors.New(pkgerrors.CodeChannelFailure, "recipient has no email address")
	}
	return c.sender.SendEmail(ctx, to.Email, msg.Subject, msg.Body)
}
