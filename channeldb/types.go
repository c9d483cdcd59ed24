// Package channeldb is the exclusive owner of all persisted monitoring
// service state: token networks, channels, monitor requests, scheduled
// actions, and the singleton blockchain-sync cursor. Nothing outside this
// package is allowed to write these rows; callers load a Snapshot, hand it
// to the reducer in package contractcourt, and hand the resulting delta
// back to Commit within the same tick's transaction.
package channeldb

import "fmt"

// Address is a 20-byte account/contract address.
type Address [20]byte

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

// Hash32 is a 32-byte hash (tx hash, balance hash, block hash, ...).
type Hash32 [32]byte

func (h Hash32) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// Signature is a 65-byte recoverable ECDSA signature (r || s || v).
type Signature [65]byte

// ChannelState is the lifecycle state of a Channel, per spec.md §4.D's
// state diagram.
type ChannelState uint8

const (
	ChannelOpened ChannelState = iota
	ChannelClosed
	ChannelSettled
)

func (s ChannelState) String() string {
	switch s {
	case ChannelOpened:
		return "opened"
	case ChannelClosed:
		return "closed"
	case ChannelSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// ChannelKey uniquely identifies a Channel: (token_network, channel_id).
type ChannelKey struct {
	TokenNetwork Address
	ChannelID    uint64
}

func (k ChannelKey) String() string {
	return fmt.Sprintf("%s/%d", k.TokenNetwork, k.ChannelID)
}

// TokenNetwork is a registry-discovered token network this service
// watches. Created on TokenNetworkCreated, never deleted.
type TokenNetwork struct {
	Address           Address
	RegisteredAtBlock uint64
}

// Channel is the materialized view of a single on-chain channel.
//
// Participant1/Participant2 are stored lexicographically ordered so that
// the pair forms a canonical, order-independent key component.
type Channel struct {
	Key ChannelKey

	Participant1  Address
	Participant2  Address
	SettleTimeout uint64

	State ChannelState

	ClosingBlock       *uint64
	ClosingParticipant *Address
	ClosingTxHash      *Hash32

	// LastNonce is the highest balance-proof nonce observed on-chain for
	// this channel (set by ChannelClosed, updated by
	// NonClosingBalanceProofUpdated). Used at action-firing time to
	// re-check that our stored request is still ahead of the chain.
	LastNonce *uint64

	MonitorTxHash *Hash32
	ClaimTxHash   *Hash32

	// MSAssisted records the ms_address observed in a
	// MonitoringAssistedByMS event for this channel, used to decide
	// reward-claim eligibility (spec.md §4.D ChannelSettled handler).
	MSAssisted *Address
}

// RequestKey uniquely identifies a MonitorRequest: (token_network,
// channel_id, non_closing_participant).
type RequestKey struct {
	TokenNetwork        Address
	ChannelID           uint64
	NonClosingParticipant Address
}

func (k RequestKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.TokenNetwork, k.ChannelID, k.NonClosingParticipant)
}

// ChannelKey projects the channel identity out of a RequestKey.
func (k RequestKey) ChannelKey() ChannelKey {
	return ChannelKey{TokenNetwork: k.TokenNetwork, ChannelID: k.ChannelID}
}

// MonitorRequest is a stored, validated delegation to submit a
// counterparty's latest balance proof. Only the highest-nonce request for
// a given RequestKey is retained (spec.md §3 monotone-nonce invariant).
type MonitorRequest struct {
	Key RequestKey

	Nonce           uint64
	BalanceHash     Hash32
	AdditionalHash  Hash32
	ChainID         uint64
	ClosingSignature Signature

	NonClosingSignature Signature

	RewardAmount        uint64
	RewardProofSignature Signature
	MSCAddress          Address
}

// ActionKind is the closed set of scheduled-action kinds from spec.md §3.
type ActionKind uint8

const (
	ActionMonitoringTriggered ActionKind = iota
	ActionClaimRewardTriggered
)

func (k ActionKind) String() string {
	switch k {
	case ActionMonitoringTriggered:
		return "monitoring_triggered"
	case ActionClaimRewardTriggered:
		return "claim_reward_triggered"
	default:
		return "unknown"
	}
}

// ScheduledAction is a timed on-chain reaction. Its ID is derived
// deterministically from (Kind, ChannelKey, TriggerBlock) so replay never
// produces a different identifier for the same logical action (spec.md §8
// determinism law) -- see DeriveActionID.
type ScheduledAction struct {
	ID           string
	Kind         ActionKind
	Channel      ChannelKey
	TriggerBlock uint64

	// NonClosingParticipant identifies which stored MonitorRequest this
	// action acts on; required to re-check preconditions at fire time.
	NonClosingParticipant Address

	// InFlight is set in the same commit that pops the action so a
	// crash/restart does not refire it (spec.md §4.E).
	InFlight bool

	// Seq breaks ties between actions sharing a TriggerBlock, in
	// insertion order (spec.md §4.D tie-break rule).
	Seq uint64
}

// BlockchainState is the singleton sync-cursor/config row.
type BlockchainState struct {
	LatestConfirmedBlock uint64

	ChainID                     uint64
	TokenNetworkRegistryAddress Address
	MonitorContractAddress      Address
	MonitoringServiceAddress    Address
}
