package channeldb

import (
	"context"

	"github.com/jackc/pgx/v4"
)

func loadRequests(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT token_network, channel_id, non_closing_participant,
		nonce, balance_hash, additional_hash, chain_id, closing_signature,
		non_closing_signature, reward_amount, reward_proof_signature, msc_address
		FROM monitor_requests`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return err
		}
		snap.Requests[r.Key] = r
	}
	return rows.Err()
}

func scanRequest(rows pgx.Rows) (MonitorRequest, error) {
	var (
		r                                                        MonitorRequest
		tokenNetwork, nonClosing                                 []byte
		balanceHash, additionalHash                              []byte
		closingSig, nonClosingSig, rewardProofSig, mscAddress    []byte
		rewardAmount                                             int64
	)

	if err := rows.Scan(&tokenNetwork, &r.Key.ChannelID, &nonClosing, &r.Nonce,
		&balanceHash, &additionalHash, &r.ChainID, &closingSig, &nonClosingSig,
		&rewardAmount, &rewardProofSig, &mscAddress); err != nil {
		return MonitorRequest{}, err
	}

	r.Key.TokenNetwork = addr20(tokenNetwork)
	r.Key.NonClosingParticipant = addr20(nonClosing)
	r.BalanceHash = hash32(balanceHash)
	r.AdditionalHash = hash32(additionalHash)
	r.ClosingSignature = sig65(closingSig)
	r.NonClosingSignature = sig65(nonClosingSig)
	r.RewardAmount = uint64(rewardAmount)
	r.RewardProofSignature = sig65(rewardProofSig)
	r.MSCAddress = addr20(mscAddress)

	return r, nil
}

func upsertRequest(ctx context.Context, tx pgx.Tx, r MonitorRequest) error {
	_, err := tx.Exec(ctx, `INSERT INTO monitor_requests
		(token_network, channel_id, non_closing_participant, nonce, balance_hash,
		 additional_hash, chain_id, closing_signature, non_closing_signature,
		 reward_amount, reward_proof_signature, msc_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (token_network, channel_id, non_closing_participant) DO UPDATE SET
			nonce                  = EXCLUDED.nonce,
			balance_hash           = EXCLUDED.balance_hash,
			additional_hash        = EXCLUDED.additional_hash,
			chain_id               = EXCLUDED.chain_id,
			closing_signature      = EXCLUDED.closing_signature,
			non_closing_signature  = EXCLUDED.non_closing_signature,
			reward_amount          = EXCLUDED.reward_amount,
			reward_proof_signature = EXCLUDED.reward_proof_signature,
			msc_address            = EXCLUDED.msc_address
		WHERE monitor_requests.nonce < EXCLUDED.nonce`,
		r.Key.TokenNetwork[:], r.Key.ChannelID, r.Key.NonClosingParticipant[:], r.Nonce,
		r.BalanceHash[:], r.AdditionalHash[:], r.ChainID, r.ClosingSignature[:],
		r.NonClosingSignature[:], int64(r.RewardAmount), r.RewardProofSignature[:],
		r.MSCAddress[:])
	return err
}

func sig65(b []byte) Signature {
	var s Signature
	copy(s[:], b)
	return s
}
