package contractcourt

import "github.com/channelwatch/msd/channeldb"

type actionKey struct {
	kind channeldb.ActionKind
	ch   channeldb.ChannelKey
}

// View is a mutable, in-memory overlay on top of a loaded
// channeldb.Snapshot. One View is created per tick; Reduce is called
// once per event in canonical order against it; at the end of the tick
// its accumulated Delta is handed to channeldb.DB.Commit. View itself
// never performs I/O -- it only rearranges data already in the
// snapshot -- which is what keeps Reduce a pure function of
// (view-so-far, event).
type View struct {
	snap *channeldb.Snapshot

	channels map[channeldb.ChannelKey]channeldb.Channel
	requests map[channeldb.RequestKey]channeldb.MonitorRequest
	pending  map[actionKey]channeldb.ScheduledAction

	dirtyChannels map[channeldb.ChannelKey]bool
	dirtyRequests map[channeldb.RequestKey]bool

	newActions   []channeldb.ScheduledAction
	cancelledIDs []string

	nextSeq uint64

	// FilterExtensions accumulates token-network addresses discovered
	// this tick that the chain reader (component A) must start watching,
	// per the TokenNetworkCreated handler's "instruct reader" return
	// value in spec.md §4.D.
	FilterExtensions []FilterExtension

	// NewTokenNetworks accumulates TokenNetwork rows to upsert.
	NewTokenNetworks []channeldb.TokenNetwork

	// CompletedActions accumulates actions whose on-chain completion was
	// observed this tick (spec.md §4.E), to be deleted outright rather
	// than merely marked in-flight. Unlike cancel/Discard, this reaches
	// actions no longer present in v.pending -- an already fired,
	// in-flight action is never loaded back into a View, so its
	// completion can only ever be recorded by (kind, channel), never by
	// looking it up in the overlay.
	CompletedActions []channeldb.ActionRef
}

// FilterExtension tells the chain reader to start watching a newly
// discovered token-network contract from a given block.
type FilterExtension struct {
	Address    channeldb.Address
	FromBlock  uint64
}

// NewView wraps snap for one tick's worth of Reduce calls.
func NewView(snap *channeldb.Snapshot) *View {
	v := &View{
		snap:          snap,
		channels:      make(map[channeldb.ChannelKey]channeldb.Channel, len(snap.Channels)),
		requests:      make(map[channeldb.RequestKey]channeldb.MonitorRequest, len(snap.Requests)),
		pending:       make(map[actionKey]channeldb.ScheduledAction, len(snap.PendingActions)),
		dirtyChannels: make(map[channeldb.ChannelKey]bool),
		dirtyRequests: make(map[channeldb.RequestKey]bool),
		nextSeq:       snap.NextActionSeq,
	}
	for k, c := range snap.Channels {
		v.channels[k] = c
	}
	for k, r := range snap.Requests {
		v.requests[k] = r
	}
	for _, a := range snap.PendingActions {
		v.pending[actionKey{a.Kind, a.Channel}] = a
	}
	return v
}

func (v *View) channel(k channeldb.ChannelKey) (channeldb.Channel, bool) {
	c, ok := v.channels[k]
	return c, ok
}

// Channel exposes the current overlay view of a channel to other
// packages (namely sweep, which needs it to craft a chain-writer call
// for a firing action).
func (v *View) Channel(k channeldb.ChannelKey) (channeldb.Channel, bool) {
	return v.channel(k)
}

// RequestForChannel exposes requestForChannel to other packages; see
// Channel.
func (v *View) RequestForChannel(ch channeldb.ChannelKey, nonClosing channeldb.Address) (channeldb.MonitorRequest, bool) {
	return v.requestForChannel(ch, nonClosing)
}

func (v *View) putChannel(c channeldb.Channel) {
	v.channels[c.Key] = c
	v.dirtyChannels[c.Key] = true
}

func (v *View) request(k channeldb.RequestKey) (channeldb.MonitorRequest, bool) {
	r, ok := v.requests[k]
	return r, ok
}

// requestForChannel returns the single stored request for a channel,
// since intake enforces at most one live request per (channel,
// non-closing participant) and the handlers that consult requests only
// ever care about the non-closing participant named in the event.
func (v *View) requestForChannel(ch channeldb.ChannelKey, nonClosing channeldb.Address) (channeldb.MonitorRequest, bool) {
	r, ok := v.requests[channeldb.RequestKey{
		TokenNetwork:          ch.TokenNetwork,
		ChannelID:             ch.ChannelID,
		NonClosingParticipant: nonClosing,
	}]
	return r, ok
}

func (v *View) schedule(a channeldb.ScheduledAction) {
	a.Seq = v.nextSeq
	v.nextSeq++
	v.pending[actionKey{a.Kind, a.Channel}] = a
	v.newActions = append(v.newActions, a)
}

// cancel drops any pending (non-fired) action of kind for channel. If it
// was scheduled earlier in this same tick it is simply discarded from
// newActions too; if it came from a prior tick its id is added to
// cancelledIDs so Commit deletes the row.
func (v *View) cancel(kind channeldb.ActionKind, ch channeldb.ChannelKey) {
	key := actionKey{kind, ch}
	a, ok := v.pending[key]
	if !ok {
		return
	}
	delete(v.pending, key)

	for i, na := range v.newActions {
		if na.Kind == kind && na.Channel == ch {
			v.newActions = append(v.newActions[:i], v.newActions[i+1:]...)
			return
		}
	}
	v.cancelledIDs = append(v.cancelledIDs, a.ID)
}

// Discard permanently drops a due action whose precondition failed at
// fire time -- per spec.md §4.D, "preconditions failing means the
// action is discarded, not retried." It is the exported counterpart to
// cancel, for use by package sweep.
func (v *View) Discard(a channeldb.ScheduledAction) {
	v.cancel(a.Kind, a.Channel)
}

// complete records that ref's on-chain completion was observed this tick,
// so Commit deletes its row outright. See CompletedActions.
func (v *View) complete(kind channeldb.ActionKind, ch channeldb.ChannelKey) {
	v.CompletedActions = append(v.CompletedActions, channeldb.ActionRef{Kind: kind, Channel: ch})
}

// Delta produces the channeldb.Commit for everything this View
// accumulated, to be applied by the caller inside the tick's single
// transaction alongside the head-block advance.
func (v *View) Delta() channeldb.Commit {
	var c channeldb.Commit

	c.UpsertTokenNetworks = v.NewTokenNetworks

	for k := range v.dirtyChannels {
		c.UpsertChannels = append(c.UpsertChannels, v.channels[k])
	}
	for k := range v.dirtyRequests {
		c.UpsertRequests = append(c.UpsertRequests, v.requests[k])
	}

	c.NewActions = v.newActions
	c.CancelledActionIDs = v.cancelledIDs
	c.CompletedActions = v.CompletedActions

	return c
}
