// Package sweep selects the scheduled actions that are due, re-checks
// their preconditions against the live view, and hands survivors to the
// chain writer -- the monitoring-service analogue of the teacher's
// txgenerator batch-selection idiom, adapted from sweeping UTXO inputs
// by fee yield to sweeping scheduled actions by trigger block.
package sweep

import (
	"context"

	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/contractcourt"
	"github.com/channelwatch/msd/mslog"
)

var log = mslog.Logger("SWEP")

// Writer is the subset of package chainwriter's surface sweep depends
// on, kept as an interface so tests can substitute a fake.
type Writer interface {
	Monitor(ctx context.Context, req channeldb.MonitorRequest) (channeldb.Hash32, error)
	ClaimReward(ctx context.Context, ch channeldb.Channel) (channeldb.Hash32, error)
}

// Fire is the outcome of invoking the chain writer for one action that
// survived selection.
type Fire struct {
	Action channeldb.ScheduledAction
	TxHash channeldb.Hash32
	Err    error
}

// SelectFirable walks every action in due, re-checking its precondition
// against v, and returns the survivors -- the ones the caller must mark
// in-flight in the tick's commit before invoking the chain writer for any
// of them (spec.md §4.H step 4). It performs no I/O and never touches the
// chain writer: actions whose precondition no longer holds are discarded
// from v outright (v.Discard), never retried, per spec.md §4.D.
func SelectFirable(v *contractcourt.View, due []channeldb.ScheduledAction) []channeldb.ScheduledAction {
	firable := make([]channeldb.ScheduledAction, 0, len(due))

	for _, a := range due {
		if !contractcourt.PreconditionsMet(v, a) {
			log.Debugf("Discarding action %v: precondition no longer met", a.ID)
			v.Discard(a)
			continue
		}
		firable = append(firable, a)
	}

	return firable
}

// FiredIDs extracts the ids of the selected actions, for the caller to
// pass as Commit.FiredActionIDs -- marking them in-flight *before* Fire is
// ever called is what makes a crash between the two calls harmless: the
// next tick's Snapshot never reloads an in-flight row, so it cannot be
// selected again (spec.md §4.H step 4, §8 scenario 3).
func FiredIDs(firable []channeldb.ScheduledAction) []string {
	ids := make([]string, 0, len(firable))
	for _, a := range firable {
		ids = append(ids, a.ID)
	}
	return ids
}

// Fire invokes the chain writer for every action in firable. It must only
// be called after the commit that marked those same actions in-flight has
// already returned successfully -- by the time Fire runs, a crash can at
// worst leave an action in-flight with no transaction ever broadcast,
// never cause a second submission of one that already landed.
func Fire(ctx context.Context, v *contractcourt.View, firable []channeldb.ScheduledAction, w Writer) []Fire {
	fires := make([]Fire, 0, len(firable))

	for _, a := range firable {
		txHash, err := fire(ctx, v, a, w)
		if err != nil {
			log.Errorf("Unable to fire action %v: %v", a.ID, err)
		}
		fires = append(fires, Fire{Action: a, TxHash: txHash, Err: err})
	}

	return fires
}

func fire(ctx context.Context, v *contractcourt.View, a channeldb.ScheduledAction, w Writer) (channeldb.Hash32, error) {
	switch a.Kind {
	case channeldb.ActionMonitoringTriggered:
		req, _ := v.RequestForChannel(a.Channel, a.NonClosingParticipant)
		return w.Monitor(ctx, req)

	case channeldb.ActionClaimRewardTriggered:
		ch, _ := v.Channel(a.Channel)
		return w.ClaimReward(ctx, ch)

	default:
		return channeldb.Hash32{}, errUnknownActionKind(a.Kind)
	}
}
