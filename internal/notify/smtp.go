package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPDispatcher struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPDispatcher(host string, port int, username, password, from string) *SMTPDispatcher {
	return &SMTPDispatcher{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (d *SMTPDispatcher) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from := m.From
	if from == "" {
		from = d.from
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Text)
	if m.HTML != "" {
		msg.AddAlternative("text/html", m.HTML)
	}

	// gomail 不认 ctx，超时由调用方 ctx 控制
	done := make(chan error, 1)
	go func() { done <- d.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", m.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
