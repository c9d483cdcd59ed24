package channeldb

import (
	"context"

	"github.com/jackc/pgx/v4"
)

func loadChannels(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT token_network, channel_id, participant1, participant2,
		settle_timeout, state, closing_block, closing_participant, closing_tx_hash,
		last_nonce, monitor_tx_hash, claim_tx_hash, ms_assisted
		FROM channels`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return err
		}
		snap.Channels[ch.Key] = ch
	}
	return rows.Err()
}

func scanChannel(rows pgx.Rows) (Channel, error) {
	var (
		ch                                       Channel
		tokenNetwork, participant1, participant2 []byte
		state                                     uint8
		closingBlock                              *uint64
		lastNonce                                 *uint64
		closingParticipant, closingTxHash         []byte
		monitorTxHash, claimTxHash, msAssisted    []byte
	)

	if err := rows.Scan(&tokenNetwork, &ch.Key.ChannelID, &participant1, &participant2,
		&ch.SettleTimeout, &state, &closingBlock, &closingParticipant, &closingTxHash,
		&lastNonce, &monitorTxHash, &claimTxHash, &msAssisted); err != nil {
		return Channel{}, err
	}

	ch.Key.TokenNetwork = addr20(tokenNetwork)
	ch.Participant1 = addr20(participant1)
	ch.Participant2 = addr20(participant2)
	ch.State = ChannelState(state)
	ch.ClosingBlock = closingBlock
	ch.LastNonce = lastNonce

	if closingParticipant != nil {
		a := addr20(closingParticipant)
		ch.ClosingParticipant = &a
	}
	if closingTxHash != nil {
		h := hash32(closingTxHash)
		ch.ClosingTxHash = &h
	}
	if monitorTxHash != nil {
		h := hash32(monitorTxHash)
		ch.MonitorTxHash = &h
	}
	if claimTxHash != nil {
		h := hash32(claimTxHash)
		ch.ClaimTxHash = &h
	}
	if msAssisted != nil {
		a := addr20(msAssisted)
		ch.MSAssisted = &a
	}

	return ch, nil
}

func upsertChannel(ctx context.Context, tx pgx.Tx, ch Channel) error {
	var closingParticipant, closingTxHash, monitorTxHash, claimTxHash, msAssisted []byte
	if ch.ClosingParticipant != nil {
		closingParticipant = ch.ClosingParticipant[:]
	}
	if ch.ClosingTxHash != nil {
		closingTxHash = ch.ClosingTxHash[:]
	}
	if ch.MonitorTxHash != nil {
		monitorTxHash = ch.MonitorTxHash[:]
	}
	if ch.ClaimTxHash != nil {
		claimTxHash = ch.ClaimTxHash[:]
	}
	if ch.MSAssisted != nil {
		msAssisted = ch.MSAssisted[:]
	}

	_, err := tx.Exec(ctx, `INSERT INTO channels
		(token_network, channel_id, participant1, participant2, settle_timeout, state,
		 closing_block, closing_participant, closing_tx_hash, last_nonce,
		 monitor_tx_hash, claim_tx_hash, ms_assisted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (token_network, channel_id) DO UPDATE SET
			state               = EXCLUDED.state,
			closing_block       = EXCLUDED.closing_block,
			closing_participant = EXCLUDED.closing_participant,
			closing_tx_hash     = EXCLUDED.closing_tx_hash,
			last_nonce          = EXCLUDED.last_nonce,
			monitor_tx_hash     = EXCLUDED.monitor_tx_hash,
			claim_tx_hash       = EXCLUDED.claim_tx_hash,
			ms_assisted         = EXCLUDED.ms_assisted`,
		ch.Key.TokenNetwork[:], ch.Key.ChannelID, ch.Participant1[:], ch.Participant2[:],
		ch.SettleTimeout, uint8(ch.State), ch.ClosingBlock, closingParticipant,
		closingTxHash, ch.LastNonce, monitorTxHash, claimTxHash, msAssisted)
	return err
}

func hash32(b []byte) Hash32 {
	var h Hash32
	copy(h[:], b)
	return h
}
