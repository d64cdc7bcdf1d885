package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// Listener holds a dedicated Postgres connection that LISTENs for enqueue
// notifications and wakes the worker pool. Polling stays the fallback, so a
// lost connection only costs latency.
type Listener struct {
	dsn     string
	channel string
	log     *logger.Logger
	onWake  func()
}

func NewListener(dsn, channel string, baseLog *logger.Logger, onWake func()) *Listener {
	return &Listener{
		dsn:     dsn,
		channel: channel,
		log:     baseLog.With("component", "JobListener"),
		onWake:  onWake,
	}
}

// Run blocks until ctx is done, reconnecting with backoff.
func (l *Listener) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn("job listener disconnected", "error", err, "retry_in", backoff.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.log.Info("listening for job notifications", "channel", l.channel)
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.log.Debug("job notification", "job_id", n.Payload)
		if l.onWake != nil {
			l.onWake()
		}
	}
}
