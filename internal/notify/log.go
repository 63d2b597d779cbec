package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes mail to the log instead of sending it. Used when no
// SMTP host is configured (local development).
type LogDispatcher struct{ l *zap.Logger }

func NewLogDispatcher(l *zap.Logger) *LogDispatcher {
	return &LogDispatcher{l: l.Named("mail")}
}

func (d *LogDispatcher) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.l.Info("mail",
		zap.String("from", m.From),
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("text", m.Text),
	)
	return nil
}
