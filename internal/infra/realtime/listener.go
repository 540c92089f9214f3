package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultRetryDelay = 3 * time.Second

// Listener はPostgresのLISTENで変更通知を受けてHubへ流す。
// 接続が切れたら一定時間おいて張り直す。
type Listener struct {
	dsn        string
	channel    string
	hub        *Hub
	log        *slog.Logger
	retryDelay time.Duration
}

func NewListener(dsn string, channel string, hub *Hub, log *slog.Logger) *Listener {
	return &Listener{
		dsn:        dsn,
		channel:    channel,
		hub:        hub,
		log:        log,
		retryDelay: defaultRetryDelay,
	}
}

// Run はctxが終わるまで戻らない
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn("realtime listener disconnected", "channel", l.channel, "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info("realtime listener started", "channel", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		ev, err := ParseEvent(n.Payload)
		if err != nil {
			l.log.Warn("realtime payload ignored", "payload", n.Payload, "err", err)
			continue
		}
		l.hub.Publish(ev)
	}
}
