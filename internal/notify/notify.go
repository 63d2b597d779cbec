// Package notify delivers transactional email. Welcome mail is best effort;
// password reset mail is returned to the caller so it can roll back.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"easyrent/internal/domain"
)

type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

type Dispatcher interface {
	Send(ctx context.Context, m Message) error
}

const (
	KindWelcome       = "welcome"
	KindPasswordReset = "password_reset"
)

type Notifier struct {
	d       Dispatcher
	from    string
	l       *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(d Dispatcher, from string, l *zap.Logger) *Notifier {
	if l == nil {
		l = zap.NewNop()
	}
	return &Notifier{d: d, from: from, l: l.Named("notify"), timeout: 30 * time.Second}
}

// Welcome 异步发送，失败只记日志和指标
func (n *Notifier) Welcome(u *domain.User) {
	msg, err := render(welcomeTpl, n.from, u.Email, "Welcome to the EasyRent family!", tplData{Name: firstName(u.Name)})
	if err != nil {
		n.l.Error("render welcome mail", zap.Error(err))
		observe(KindWelcome, err)
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		err := n.d.Send(ctx, msg)
		observe(KindWelcome, err)
		if err != nil {
			n.l.Warn("welcome mail not delivered", zap.String("user_id", u.ID), zap.Error(err))
		}
	}()
}

// PasswordReset blocks until the dispatcher answers.
func (n *Notifier) PasswordReset(ctx context.Context, u *domain.User, resetURL string) error {
	msg, err := render(resetTpl, n.from, u.Email, "Your password reset token (valid for 10 min)", tplData{
		Name: firstName(u.Name),
		URL:  resetURL,
	})
	if err == nil {
		err = n.d.Send(ctx, msg)
	}
	observe(KindPasswordReset, err)
	return err
}

// Wait blocks until background sends finish.
func (n *Notifier) Wait() { n.wg.Wait() }
