package ports

import (
	"context"

	"github.com/texresolve/accounts-api/internal/core/domain"
)

// MailMessage is a rendered message ready for delivery.
type MailMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

// MailTemplateActivation is the message sent after registration.
const MailTemplateActivation = "activation-mail.html"

// ActivationMail is the view model of MailTemplateActivation.
type ActivationMail struct {
	Name  string
	Email string
	Role  string
}

// MailRenderer renders a named template with data.
type MailRenderer interface {
	Render(name string, data any) (string, error)
}

// MailSender delivers a single message.
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailQueue accepts messages for asynchronous delivery. Enqueue reports
// false when the message was dropped.
type MailQueue interface {
	Enqueue(msg MailMessage) bool
}

// EventPublisher announces account changes to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.AccountEvent) error
}
