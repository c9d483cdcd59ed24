package channeldb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
)

// Snapshot is the entire materialized view the reducer needs for one
// tick: every tracked token network and channel, the live monitor
// requests, and every action not yet in flight. It is loaded once at the top
// of a tick and never mutated in place -- the reducer produces a Commit
// describing the delta instead (spec.md §4.C, §4.D).
type Snapshot struct {
	LatestConfirmedBlock uint64

	TokenNetworks map[Address]TokenNetwork
	Channels      map[ChannelKey]Channel
	Requests      map[RequestKey]MonitorRequest

	// PendingActions holds every ScheduledAction with InFlight == false,
	// regardless of whether its TriggerBlock has arrived yet, ordered by
	// (TriggerBlock, Seq). The reducer needs the not-yet-due ones too,
	// to be able to cancel an action before it fires (e.g. a
	// NonClosingBalanceProofUpdated that makes a future
	// ActionMonitoringTriggered moot).
	PendingActions []ScheduledAction

	// NextActionSeq is one past the highest Seq among stored actions, so the
	// reducer can hand out tie-break sequence numbers to newly scheduled
	// actions within the tick without a round trip to the database.
	NextActionSeq uint64
}

// Commit is the write-side counterpart to Snapshot: everything a single
// tick changed, applied atomically by Commit (spec.md §4.C).
type Commit struct {
	NewHeadBlock uint64

	UpsertTokenNetworks []TokenNetwork
	UpsertChannels      []Channel
	UpsertRequests      []MonitorRequest

	NewActions         []ScheduledAction
	FiredActionIDs     []string
	CancelledActionIDs []string

	// CompletedActions names actions whose row should be deleted outright
	// because their on-chain completion was observed (spec.md §4.E
	// "Completion ... deletes the action row"). Addressed by (kind,
	// channel) rather than id, since the UNIQUE (kind, token_network,
	// channel_id) constraint already guarantees at most one row matches --
	// and an already in-flight action is never loaded back into a View's
	// pending set, so its id isn't available to the reducer that observes
	// the completion.
	CompletedActions []ActionRef
}

// ActionRef names a scheduled action by its natural key, for callers (the
// reducer observing on-chain completion, the post-commit firing step) that
// don't have the derived id at hand.
type ActionRef struct {
	Kind    ActionKind
	Channel ChannelKey
}

// Load materializes a fresh Snapshot from the current database state.
// Called once at the top of each tick in mainloop's reactor.
func (d *DB) Load(ctx context.Context) (*Snapshot, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	snap := &Snapshot{
		TokenNetworks: make(map[Address]TokenNetwork),
		Channels:      make(map[ChannelKey]Channel),
		Requests:      make(map[RequestKey]MonitorRequest),
	}

	row := tx.QueryRow(ctx, `SELECT latest_confirmed_block FROM blockchain_state WHERE id = TRUE`)
	if err := row.Scan(&snap.LatestConfirmedBlock); err != nil {
		if isNoRows(err) {
			return nil, ErrNoBlockchainState
		}
		return nil, err
	}

	if err := loadTokenNetworks(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := loadChannels(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := loadRequests(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := loadPendingActions(ctx, tx, snap); err != nil {
		return nil, err
	}

	row = tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM scheduled_actions`)
	if err := row.Scan(&snap.NextActionSeq); err != nil {
		return nil, err
	}

	return snap, tx.Commit(ctx)
}

// Commit applies c atomically: it advances the sync cursor, upserts
// every changed entity, inserts newly scheduled actions, and marks fired
// actions in_flight, all inside a single Postgres transaction. Either
// the whole tick lands or none of it does, which is what makes the
// "stable" and "crashy" replay modes converge to the same state (spec.md
// §8 crash-consistency law).
func (d *DB) Commit(ctx context.Context, c Commit) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE blockchain_state SET latest_confirmed_block = $1 WHERE id = TRUE`,
		c.NewHeadBlock); err != nil {
		return fmt.Errorf("advance head block: %w", err)
	}

	for _, tn := range c.UpsertTokenNetworks {
		if _, err := tx.Exec(ctx, `INSERT INTO token_networks (address, registered_at_block)
			VALUES ($1, $2)
			ON CONFLICT (address) DO NOTHING`,
			tn.Address[:], tn.RegisteredAtBlock); err != nil {
			return fmt.Errorf("upsert token network %s: %w", tn.Address, err)
		}
	}

	for _, ch := range c.UpsertChannels {
		if err := upsertChannel(ctx, tx, ch); err != nil {
			return fmt.Errorf("upsert channel %s: %w", ch.Key, err)
		}
	}

	for _, r := range c.UpsertRequests {
		if err := upsertRequest(ctx, tx, r); err != nil {
			return fmt.Errorf("upsert monitor request %s: %w", r.Key, err)
		}
	}

	for _, a := range c.NewActions {
		if err := insertAction(ctx, tx, a); err != nil {
			return fmt.Errorf("insert scheduled action %s: %w", a.ID, err)
		}
	}

	for _, id := range c.FiredActionIDs {
		if _, err := tx.Exec(ctx, `UPDATE scheduled_actions SET in_flight = TRUE WHERE id = $1`,
			id); err != nil {
			return fmt.Errorf("mark action %s in-flight: %w", id, err)
		}
	}

	for _, id := range c.CancelledActionIDs {
		if _, err := tx.Exec(ctx, `DELETE FROM scheduled_actions WHERE id = $1`,
			id); err != nil {
			return fmt.Errorf("cancel action %s: %w", id, err)
		}
	}

	for _, ref := range c.CompletedActions {
		if err := deleteActionByRef(ctx, tx, ref); err != nil {
			return fmt.Errorf("complete action %s/%s: %w", ref.Kind, ref.Channel, err)
		}
	}

	return tx.Commit(ctx)
}

// CompleteAction deletes the row for ref outright, in its own one-row
// transaction. Used by the main loop after a chain-writer call it issued
// post-commit succeeds (spec.md §4.E completion), for action kinds with no
// later on-chain event the reducer could key the deletion off of instead.
func (d *DB) CompleteAction(ctx context.Context, ref ActionRef) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM scheduled_actions
		WHERE kind = $1 AND token_network = $2 AND channel_id = $3`,
		uint8(ref.Kind), ref.Channel.TokenNetwork[:], ref.Channel.ChannelID)
	return err
}

func deleteActionByRef(ctx context.Context, tx pgx.Tx, ref ActionRef) error {
	_, err := tx.Exec(ctx, `DELETE FROM scheduled_actions
		WHERE kind = $1 AND token_network = $2 AND channel_id = $3`,
		uint8(ref.Kind), ref.Channel.TokenNetwork[:], ref.Channel.ChannelID)
	return err
}

func loadTokenNetworks(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT address, registered_at_block FROM token_networks`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var addr []byte
		var tn TokenNetwork
		if err := rows.Scan(&addr, &tn.RegisteredAtBlock); err != nil {
			return err
		}
		tn.Address = addr20(addr)
		snap.TokenNetworks[tn.Address] = tn
	}
	return rows.Err()
}

func loadPendingActions(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT id, kind, token_network, channel_id,
		non_closing_participant, trigger_block, seq, in_flight
		FROM scheduled_actions
		WHERE in_flight = FALSE
		ORDER BY trigger_block, seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a              ScheduledAction
			tokenNetwork   []byte
			nonClosing     []byte
			kind           uint8
		)
		if err := rows.Scan(&a.ID, &kind, &tokenNetwork, &a.Channel.ChannelID,
			&nonClosing, &a.TriggerBlock, &a.Seq, &a.InFlight); err != nil {
			return err
		}
		a.Kind = ActionKind(kind)
		a.Channel.TokenNetwork = addr20(tokenNetwork)
		a.NonClosingParticipant = addr20(nonClosing)
		snap.PendingActions = append(snap.PendingActions, a)
	}
	return rows.Err()
}

// Due returns the subset of PendingActions whose TriggerBlock has
// arrived, preserving (TriggerBlock, Seq) order.
func (s *Snapshot) Due(headBlock uint64) []ScheduledAction {
	due := make([]ScheduledAction, 0, len(s.PendingActions))
	for _, a := range s.PendingActions {
		if a.TriggerBlock <= headBlock {
			due = append(due, a)
		}
	}
	return due
}
