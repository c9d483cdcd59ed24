package contractcourt

import "github.com/channelwatch/msd/channeldb"

// PreconditionsMet re-validates a due action against the current view
// immediately before firing, per the action-firing policy in spec.md
// §4.D/§4.E: a precondition failure discards the action rather than
// retrying it. Called by package sweep, which owns the drain loop.
func PreconditionsMet(v *View, a channeldb.ScheduledAction) bool {
	ch, ok := v.channel(a.Channel)
	if !ok {
		return false
	}

	switch a.Kind {
	case channeldb.ActionMonitoringTriggered:
		if ch.State != channeldb.ChannelClosed {
			return false
		}
		req, ok := v.requestForChannel(a.Channel, a.NonClosingParticipant)
		if !ok {
			return false
		}
		if ch.LastNonce != nil && *ch.LastNonce >= req.Nonce {
			return false
		}
		return true

	case channeldb.ActionClaimRewardTriggered:
		if ch.State != channeldb.ChannelSettled {
			return false
		}
		return ch.MSAssisted != nil

	default:
		return false
	}
}
