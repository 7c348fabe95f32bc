package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tetsu-is/crate-digger/internal/log"
)

// DefaultPGChannel is the NOTIFY channel written by the change triggers.
const DefaultPGChannel = "crate_digger_changes"

// PGRelay listens for Postgres NOTIFY payloads and republishes them as
// changes on a bus.
type PGRelay struct {
	pool    *pgxpool.Pool
	channel string
	pub     Publisher
	backoff time.Duration
}

func NewPGRelay(pool *pgxpool.Pool, channel string, pub Publisher) *PGRelay {
	if channel == "" {
		channel = DefaultPGChannel
	}
	return &PGRelay{pool: pool, channel: channel, pub: pub, backoff: 2 * time.Second}
}

// Run relays until ctx is done, reconnecting after connection errors.
func (r *PGRelay) Run(ctx context.Context) {
	l := log.L()
	for {
		err := r.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.Warn().Err(err).Str(log.FieldTopic, r.channel).Msg("notify relay lost connection, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.backoff):
		}
	}
}

func (r *PGRelay) listen(ctx context.Context) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{r.channel}.Sanitize()); err != nil {
		return err
	}
	l := log.L()
	l.Info().Str(log.FieldTopic, r.channel).Msg("notify relay listening")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c, err := decodeNotification(n.Payload)
		if err != nil {
			l.Error().Err(err).Str("payload", n.Payload).Msg("bad notify payload")
			continue
		}
		if err := r.pub.Publish(ctx, c); err != nil {
			l.Error().Err(err).Str("table", c.Table).Msg("failed to publish change")
		}
	}
}

func decodeNotification(payload string) (Change, error) {
	var c Change
	err := json.Unmarshal([]byte(payload), &c)
	return c, err
}
