package intake

import (
	"github.com/go-playground/validator/v10"

	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/contractcourt"
)

// Recoverer recovers the signer address from a signed hash, backed in
// production by go-ethereum's crypto.SigToPub/PubkeyToAddress. Kept as
// an interface so intake's own tests never need a real private key.
type Recoverer interface {
	Recover(hash channeldb.Hash32, sig channeldb.Signature) (channeldb.Address, error)
}

// Validator runs the four-stage check from spec.md §4.F against a
// loaded contractcourt.View.
type Validator struct {
	structural *validator.Validate
	recoverer  Recoverer

	ourMSCAddress channeldb.Address
	chainID       uint64
}

// NewValidator constructs a Validator anchored to this service's own
// contract address and chain id -- the jurisdiction check in stage 3.
func NewValidator(recoverer Recoverer, mscAddress channeldb.Address, chainID uint64) *Validator {
	return &Validator{
		structural:    validator.New(),
		recoverer:     recoverer,
		ourMSCAddress: mscAddress,
		chainID:       chainID,
	}
}

// Validate runs all four stages and, on success, returns the
// channeldb.MonitorRequest ready to be upserted by the caller within the
// current tick's transaction.
func (v *Validator) Validate(req Request, view *contractcourt.View) (channeldb.MonitorRequest, error) {
	if err := v.structural.Struct(req); err != nil {
		return channeldb.MonitorRequest{}, reject(RejectStructural, "%w", err)
	}

	ch, ok := view.Channel(req.channelKey())
	if !ok {
		return channeldb.MonitorRequest{}, reject(RejectChannelState, "channel %s does not exist", req.channelKey())
	}

	closingSigner, err := v.recoverer.Recover(req.BalanceHash, req.ClosingSignature)
	if err != nil {
		return channeldb.MonitorRequest{}, reject(RejectSignature, "recover closing signature: %w", err)
	}
	nonClosingSigner, err := v.recoverer.Recover(req.AdditionalHash, req.NonClosingSignature)
	if err != nil {
		return channeldb.MonitorRequest{}, reject(RejectSignature, "recover non-closing signature: %w", err)
	}
	if !isParticipantPair(ch, closingSigner, nonClosingSigner) {
		return channeldb.MonitorRequest{}, reject(RejectSignature,
			"recovered signers %s/%s do not match channel participants", closingSigner, nonClosingSigner)
	}
	if nonClosingSigner != req.NonClosingParticipant {
		return channeldb.MonitorRequest{}, reject(RejectSignature,
			"non_closing_participant %s does not match recovered signer %s", req.NonClosingParticipant, nonClosingSigner)
	}

	if req.MSCAddress != v.ourMSCAddress {
		return channeldb.MonitorRequest{}, reject(RejectJurisdiction,
			"msc_address %s is not this monitoring service (%s)", req.MSCAddress, v.ourMSCAddress)
	}
	if req.ChainID != v.chainID {
		return channeldb.MonitorRequest{}, reject(RejectJurisdiction,
			"chain_id %d does not match configured chain_id %d", req.ChainID, v.chainID)
	}

	switch ch.State {
	case channeldb.ChannelOpened:
		// any nonce is acceptable; fall through to the existing-request check.
	case channeldb.ChannelClosed:
		if existing, ok := view.RequestForChannel(req.channelKey(), req.NonClosingParticipant); ok && req.Nonce <= existing.Nonce {
			return channeldb.MonitorRequest{}, reject(RejectStaleNonce,
				"nonce %d does not exceed stored/observed nonce %d", req.Nonce, existing.Nonce)
		}
		if ch.LastNonce != nil && req.Nonce <= *ch.LastNonce {
			return channeldb.MonitorRequest{}, reject(RejectStaleNonce,
				"nonce %d does not exceed the nonce %d already observed on-chain at close", req.Nonce, *ch.LastNonce)
		}
	default:
		return channeldb.MonitorRequest{}, reject(RejectChannelState,
			"channel %s is in terminal state %s", req.channelKey(), ch.State)
	}

	if existing, ok := view.RequestForChannel(req.channelKey(), req.NonClosingParticipant); ok && req.Nonce <= existing.Nonce {
		return channeldb.MonitorRequest{}, reject(RejectStaleNonce,
			"nonce %d does not exceed stored nonce %d", req.Nonce, existing.Nonce)
	}

	return channeldb.MonitorRequest{
		Key:                  req.requestKey(),
		Nonce:                req.Nonce,
		BalanceHash:          req.BalanceHash,
		AdditionalHash:       req.AdditionalHash,
		ChainID:              req.ChainID,
		ClosingSignature:     req.ClosingSignature,
		NonClosingSignature:  req.NonClosingSignature,
		RewardAmount:         req.RewardAmount,
		RewardProofSignature: req.RewardProofSignature,
		MSCAddress:           req.MSCAddress,
	}, nil
}

func isParticipantPair(ch channeldb.Channel, a, b channeldb.Address) bool {
	return (ch.Participant1 == a && ch.Participant2 == b) ||
		(ch.Participant1 == b && ch.Participant2 == a)
}
