package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ResponseNotice resume la respuesta de una niñera para avisar al padre.
type ResponseNotice struct {
	ParentFirstName     string
	BabysitterFirstName string
	Date                string
	TimeRange           string
	Available           bool
	Response            string
}

// Sender define la interfaz para los correos salientes.
type Sender interface {
	SendResponseNotice(ctx context.Context, toEmail string, notice ResponseNotice) error
	SendUpgradeLink(ctx context.Context, toEmail string, link string) error
}

var ErrSenderDisabled = errors.New("email sender disabled")

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendResponseNotice(_ context.Context, _ string, _ ResponseNotice) error {
	return s.err()
}

func (s *disabledSender) SendUpgradeLink(_ context.Context, _ string, _ string) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return ErrSenderDisabled
	}
	return fmt.Errorf("%w: %s", ErrSenderDisabled, s.reason)
}

func responseNoticeContent(n ResponseNotice) (string, string) {
	verdict := "can't make it"
	if n.Available {
		verdict = "is available"
	}
	name := strings.TrimSpace(n.BabysitterFirstName)
	if name == "" {
		name = "Your babysitter"
	}
	subject := fmt.Sprintf("%s %s on %s", name, verdict, n.Date)

	var b strings.Builder
	if n.ParentFirstName != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", n.ParentFirstName)
	}
	fmt.Fprintf(&b, "%s answered your request for %s (%s):\n\n", name, n.Date, n.TimeRange)
	fmt.Fprintf(&b, "  %s\n", n.Response)
	return subject, b.String()
}

func upgradeContent(link string) (string, string) {
	subject := "Confirm your premium upgrade"
	body := fmt.Sprintf(
		"Follow this link to upgrade your family to the premium plan:\n\n%s\n\nThe link expires in 24 hours.\n",
		link,
	)
	return subject, body
}
