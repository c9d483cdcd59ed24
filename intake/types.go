// Package intake validates incoming MonitorRequest messages against
// structural, semantic, jurisdiction, and channel-state rules (spec.md
// §4.F) before they are handed to the main loop for upsert. It never
// causes on-chain activity itself.
package intake

import "github.com/channelwatch/msd/channeldb"

// Request is the wire shape of an incoming MonitorRequest, validated
// with go-playground/validator struct tags the way other examples in
// this corpus validate inbound API payloads.
type Request struct {
	ChannelID             uint64              `validate:"required"`
	TokenNetwork          channeldb.Address   `validate:"required"`
	NonClosingParticipant channeldb.Address   `validate:"required"`

	Nonce          uint64            `validate:"required,gt=0"`
	BalanceHash    channeldb.Hash32  `validate:"required"`
	AdditionalHash channeldb.Hash32  `validate:"required"`
	ChainID        uint64            `validate:"required"`

	ClosingSignature    channeldb.Signature `validate:"required"`
	NonClosingSignature channeldb.Signature `validate:"required"`

	RewardAmount         uint64              `validate:"required"`
	RewardProofSignature channeldb.Signature `validate:"required"`
	MSCAddress           channeldb.Address   `validate:"required"`
}

func (r Request) channelKey() channeldb.ChannelKey {
	return channeldb.ChannelKey{TokenNetwork: r.TokenNetwork, ChannelID: r.ChannelID}
}

func (r Request) requestKey() channeldb.RequestKey {
	return channeldb.RequestKey{
		TokenNetwork:          r.TokenNetwork,
		ChannelID:             r.ChannelID,
		NonClosingParticipant: r.NonClosingParticipant,
	}
}
