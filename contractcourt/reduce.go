package contractcourt

import (
	"bytes"
	"math"

	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/events"
)

// Reduce applies a single event to v, mutating its overlay and
// returning an error only for a StateInvariantViolation (spec.md §7);
// every other handler either mutates state or is a deliberate no-op.
// Reduce performs no I/O: all its inputs are already resident in v and
// params.
func Reduce(v *View, ev events.Event, params Params) error {
	switch e := ev.(type) {
	case events.TokenNetworkCreated:
		return reduceTokenNetworkCreated(v, e)
	case events.ChannelOpened:
		return reduceChannelOpened(v, e)
	case events.ChannelClosed:
		return reduceChannelClosed(v, e, params)
	case events.NonClosingBalanceProofUpdated:
		return reduceNonClosingBalanceProofUpdated(v, e)
	case events.ChannelSettled:
		return reduceChannelSettled(v, e, params)
	case events.MonitoringAssistedByMS:
		return reduceMonitoringAssistedByMS(v, e, params)
	case events.TickAdvanced:
		return nil
	default:
		return invariantViolation("unrecognized event type %T", ev)
	}
}

// TokenNetworkCreated: add to known set; instruct the reader to extend
// its filter to the new address starting at the event's block.
// Idempotent on replay because the token_networks upsert is
// ON CONFLICT DO NOTHING.
func reduceTokenNetworkCreated(v *View, e events.TokenNetworkCreated) error {
	v.NewTokenNetworks = append(v.NewTokenNetworks, channeldb.TokenNetwork{
		Address:           e.TokenNetworkAddress,
		RegisteredAtBlock: e.Block(),
	})
	v.FilterExtensions = append(v.FilterExtensions, FilterExtension{
		Address:   e.TokenNetworkAddress,
		FromBlock: e.Block(),
	})
	return nil
}

// ChannelOpened: insert the Channel row. A MonitorRequest already
// stored for this key (received before the channel existed on chain)
// simply becomes valid for the next close -- no action needed here.
func reduceChannelOpened(v *View, e events.ChannelOpened) error {
	key := channeldb.ChannelKey{TokenNetwork: e.TokenNetwork, ChannelID: e.ChannelID}
	if _, exists := v.channel(key); exists {
		return invariantViolation("ChannelOpened for already-open channel %s", key)
	}

	p1, p2 := e.Participant1, e.Participant2
	if bytes.Compare(p2[:], p1[:]) < 0 {
		p1, p2 = p2, p1
	}

	v.putChannel(channeldb.Channel{
		Key:           key,
		Participant1:  p1,
		Participant2:  p2,
		SettleTimeout: e.SettleTimeout,
		State:         channeldb.ChannelOpened,
	})
	return nil
}

// ChannelClosed: transition to Closed, record closing participant and
// block. If a stored MonitorRequest names the *other* participant as
// its non-closer and its nonce is usable, schedule
// ActionMonitoringTriggered at closing_block + floor(settle_timeout *
// monitor_fraction).
func reduceChannelClosed(v *View, e events.ChannelClosed, params Params) error {
	key := channeldb.ChannelKey{TokenNetwork: e.TokenNetwork, ChannelID: e.ChannelID}
	ch, ok := v.channel(key)
	if !ok {
		return invariantViolation("ChannelClosed for unknown channel %s", key)
	}
	if ch.State != channeldb.ChannelOpened {
		return invariantViolation("ChannelClosed for channel %s not in Opened state (got %s)", key, ch.State)
	}

	block := e.Block()
	closing := e.ClosingParticipant
	nonce := e.Nonce
	ch.State = channeldb.ChannelClosed
	ch.ClosingBlock = &block
	ch.ClosingParticipant = &closing
	ch.LastNonce = &nonce
	v.putChannel(ch)

	nonClosing := otherParticipant(ch, closing)
	if req, ok := v.requestForChannel(key, nonClosing); ok && req.Nonce > e.Nonce {
		delay := uint64(math.Floor(float64(ch.SettleTimeout) * params.MonitorFraction))
		v.schedule(channeldb.ScheduledAction{
			ID:                    channeldb.DeriveActionID(channeldb.ActionMonitoringTriggered, key, block+delay),
			Kind:                  channeldb.ActionMonitoringTriggered,
			Channel:               key,
			TriggerBlock:          block + delay,
			NonClosingParticipant: nonClosing,
		})
	}

	return nil
}

// NonClosingBalanceProofUpdated: if the on-chain nonce already matches
// or exceeds what we would have submitted, the pending monitoring
// action (if any) is now redundant work -- cancel it.
func reduceNonClosingBalanceProofUpdated(v *View, e events.NonClosingBalanceProofUpdated) error {
	key := channeldb.ChannelKey{TokenNetwork: e.TokenNetwork, ChannelID: e.ChannelID}
	if _, ok := v.channel(key); !ok {
		return invariantViolation("NonClosingBalanceProofUpdated for unknown channel %s", key)
	}

	ch, _ := v.channel(key)
	nonce := e.Nonce
	ch.LastNonce = &nonce
	v.putChannel(ch)

	nonClosing := otherParticipant(ch, e.ClosingParticipant)
	if req, ok := v.requestForChannel(key, nonClosing); ok && e.Nonce >= req.Nonce {
		v.cancel(channeldb.ActionMonitoringTriggered, key)
	}
	return nil
}

// ChannelSettled: transition to Settled. If this service is the one
// recorded as having assisted (via a prior MonitoringAssistedByMS for
// our own address), schedule ActionClaimRewardTriggered. Any
// still-pending monitor action is cancelled -- it's too late to fire
// one, the channel is gone.
func reduceChannelSettled(v *View, e events.ChannelSettled, params Params) error {
	key := channeldb.ChannelKey{TokenNetwork: e.TokenNetwork, ChannelID: e.ChannelID}
	ch, ok := v.channel(key)
	if !ok {
		return invariantViolation("ChannelSettled for unknown channel %s", key)
	}

	ch.State = channeldb.ChannelSettled
	v.putChannel(ch)

	v.cancel(channeldb.ActionMonitoringTriggered, key)

	if ch.MSAssisted != nil && *ch.MSAssisted == channeldb.Address(params.OurAddress) {
		block := e.Block()
		v.schedule(channeldb.ScheduledAction{
			ID:           channeldb.DeriveActionID(channeldb.ActionClaimRewardTriggered, key, block+params.ClaimDelayBlocks),
			Kind:         channeldb.ActionClaimRewardTriggered,
			Channel:      key,
			TriggerBlock: block + params.ClaimDelayBlocks,
		})
	}

	return nil
}

// MonitoringAssistedByMS: record which monitoring service (possibly
// this one) submitted the non-closer's balance proof, for the
// ChannelSettled handler's reward-eligibility check. When the assisting
// address is this service's own, the event is also the on-chain
// observation that our previously fired ActionMonitoringTriggered
// completed, so its row is deleted outright (spec.md §4.E).
func reduceMonitoringAssistedByMS(v *View, e events.MonitoringAssistedByMS, params Params) error {
	key := channeldb.ChannelKey{TokenNetwork: e.TokenNetwork, ChannelID: e.ChannelID}
	ch, ok := v.channel(key)
	if !ok {
		return invariantViolation("MonitoringAssistedByMS for unknown channel %s", key)
	}

	ms := e.MSAddress
	ch.MSAssisted = &ms
	v.putChannel(ch)

	if ms == channeldb.Address(params.OurAddress) {
		v.complete(channeldb.ActionMonitoringTriggered, key)
	}
	return nil
}

func otherParticipant(ch channeldb.Channel, p channeldb.Address) channeldb.Address {
	if ch.Participant1 == p {
		return ch.Participant2
	}
	return ch.Participant1
}
