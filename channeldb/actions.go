package channeldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

// ErrDuplicateScheduledAction is returned when an insert collides with the
// UNIQUE (kind, token_network, channel_id) constraint -- at most one
// pending action of a given kind may exist per channel at a time (spec.md
// §4.E). The reducer is expected never to schedule a second one while the
// first is still pending, so seeing this classified out of a raw
// *pgconn.PgError means that invariant broke upstream, not a routine retry
// case like the id-collision ON CONFLICT below silently tolerates.
var ErrDuplicateScheduledAction = errors.New("duplicate scheduled action for (kind, channel)")

func insertAction(ctx context.Context, tx pgx.Tx, a ScheduledAction) error {
	_, err := tx.Exec(ctx, `INSERT INTO scheduled_actions
		(id, kind, token_network, channel_id, non_closing_participant,
		 trigger_block, seq, in_flight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, uint8(a.Kind), a.Channel.TokenNetwork[:], a.Channel.ChannelID,
		a.NonClosingParticipant[:], a.TriggerBlock, a.Seq, a.InFlight)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateScheduledAction, a.Kind, a.Channel)
	}
	return err
}

// isUniqueViolation classifies a Postgres error as a 23505 unique_violation
// via pgerrcode, the same way the teacher's channeldb layer would surface a
// constraint failure as a typed sentinel rather than leaking the driver
// error to callers that have no business matching on SQLSTATE strings.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
