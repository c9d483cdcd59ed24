// Package events defines the closed set of typed domain events the main
// loop folds over the reducer in package contractcourt, and decodes them
// out of raw go-ethereum logs (spec.md §4.B).
package events

import "github.com/channelwatch/msd/channeldb"

// Event is implemented by every member of the closed event set. It
// exists only to let the main loop carry a heterogeneous, ordered event
// stream; type-switch on the concrete type to handle one.
type Event interface {
	Block() uint64
	eventMarker()
}

type base struct {
	block uint64
}

func (b base) Block() uint64 { return b.block }
func (base) eventMarker()    {}

// TokenNetworkCreated is emitted by the registry when a new token
// network is deployed.
type TokenNetworkCreated struct {
	base
	TokenNetworkAddress channeldb.Address
}

// ChannelOpened is emitted by a token network when two participants open
// a channel.
type ChannelOpened struct {
	base
	TokenNetwork  channeldb.Address
	ChannelID     uint64
	Participant1  channeldb.Address
	Participant2  channeldb.Address
	SettleTimeout uint64
}

// ChannelClosed is emitted when either participant closes a channel.
type ChannelClosed struct {
	base
	TokenNetwork       channeldb.Address
	ChannelID          uint64
	ClosingParticipant channeldb.Address
	Nonce              uint64
}

// NonClosingBalanceProofUpdated is emitted when the non-closing
// participant (or someone submitting on their behalf, such as this MS)
// updates the closing balance proof on-chain.
type NonClosingBalanceProofUpdated struct {
	base
	TokenNetwork       channeldb.Address
	ChannelID          uint64
	ClosingParticipant channeldb.Address
	Nonce              uint64
}

// ChannelSettled is emitted once the settle timeout elapses and either
// participant calls settle.
type ChannelSettled struct {
	base
	TokenNetwork channeldb.Address
	ChannelID    uint64
}

// MonitoringAssistedByMS is emitted by the monitoring-service contract
// (NewBalanceProofReceived in spec.md §6) identifying which monitoring
// service submitted a balance proof on a non-closing participant's
// behalf.
type MonitoringAssistedByMS struct {
	base
	TokenNetwork          channeldb.Address
	ChannelID             uint64
	NonClosingParticipant channeldb.Address
	MSAddress             channeldb.Address
}

// TickAdvanced is synthesized by the main loop -- never decoded from a
// log -- once a tick's confirmed head has been established, even if no
// new logs were found. It carries no state mutation and the reducer
// applies no change for it; due actions are picked by the main loop from
// channeldb.Snapshot.Due (spec.md §4.D).
type TickAdvanced struct {
	base
}
