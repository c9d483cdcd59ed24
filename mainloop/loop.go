// Package mainloop drives the one-tick-one-transaction reactor: it is
// the direct structural descendant of the teacher's breachArbiter
// contractObserver -- a single select loop cooperatively servicing
// timer ticks, inbound off-chain messages, and shutdown -- generalized
// from watching one set of channels for breaches to running the full
// chain-follow / reduce / sweep / commit cycle against channeldb.
package mainloop

import (
	"context"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/channelwatch/msd/chainntfs"
	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/contractcourt"
	"github.com/channelwatch/msd/events"
	"github.com/channelwatch/msd/intake"
	"github.com/channelwatch/msd/mslog"
	"github.com/channelwatch/msd/msmetrics"
	"github.com/channelwatch/msd/sweep"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

var log = mslog.Logger("MAIN")

// Reactor owns the single logical thread of execution for state
// mutation: ticks, request intake, and shutdown are all serviced from
// one goroutine's select loop (spec.md §5).
type Reactor struct {
	db        *channeldb.DB
	reader    *chainntfs.Reader
	writer    sweep.Writer
	intake    *intake.Intake
	validator *intake.Validator
	params    contractcourt.Params
	clock     clock.Clock

	lastProcessedBlock uint64
	invariantRetries   int

	quit chan struct{}
}

// Config bundles Reactor's collaborators, assembled once at the
// composition root (cmd/msd).
type Config struct {
	DB        *channeldb.DB
	Reader    *chainntfs.Reader
	Writer    sweep.Writer
	Intake    *intake.Intake
	Validator *intake.Validator
	Params    contractcourt.Params

	// Clock times each committed tick for the last_tick_unix_seconds
	// staleness gauge. Defaults to the real wall clock; tests inject
	// clock.NewTestClock to assert on the stamped value deterministically.
	Clock clock.Clock
}

// New constructs a Reactor from cfg.
func New(cfg Config) *Reactor {
	cl := cfg.Clock
	if cl == nil {
		cl = clock.NewDefaultClock()
	}
	return &Reactor{
		db:        cfg.DB,
		reader:    cfg.Reader,
		writer:    cfg.Writer,
		intake:    cfg.Intake,
		validator: cfg.Validator,
		params:    cfg.Params,
		clock:     cl,
		quit:      make(chan struct{}),
	}
}

// maxInvariantRetries bounds how many consecutive ticks may fail with a
// StateInvariantViolation before the service treats it as fatal and
// exits non-zero, per spec.md §7.
const maxInvariantRetries = 3

// Run blocks servicing ticks on pollInterval until ctx is cancelled or
// a persistent invariant violation makes it exit with an error.
func (r *Reactor) Run(ctx context.Context, pollTicker ticker.Ticker) error {
	pollTicker.Resume()
	defer pollTicker.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-r.quit:
				return nil
			case <-pollTicker.Ticks():
				if err := r.tick(ctx); err != nil {
					if r.fatal(err) {
						return err
					}
				}
			case raw := <-r.intake.Requests():
				req, ok := raw.(intake.Request)
				if !ok {
					continue
				}
				if err := r.handleRequest(ctx, req); err != nil {
					log.Warnf("Rejected monitor request: %v", err)
				}
			}
		}
	})

	return g.Wait()
}

// Shutdown signals Run's loop to finish its current tick and return.
func (r *Reactor) Shutdown() {
	close(r.quit)
}

func (r *Reactor) fatal(err error) bool {
	var ccErr *contractcourt.Error
	if !isInvariantError(err, &ccErr) {
		r.invariantRetries = 0
		return false
	}

	r.invariantRetries++
	msmetrics.StateInvariantViolationsTotal.Inc()
	log.Errorf("Tick aborted by state invariant violation (%d/%d): %v",
		r.invariantRetries, maxInvariantRetries, err)

	return r.invariantRetries >= maxInvariantRetries
}

func isInvariantError(err error, target **contractcourt.Error) bool {
	for err != nil {
		if ccErr, ok := err.(*contractcourt.Error); ok {
			*target = ccErr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// tick implements the five-step sequence from spec.md §4.H.
func (r *Reactor) tick(ctx context.Context) error {
	newHead, err := r.reader.ConfirmedHead(ctx)
	if err != nil {
		return err
	}

	snap, err := r.db.Load(ctx)
	if err != nil {
		return err
	}
	if newHead <= snap.LatestConfirmedBlock {
		return nil
	}

	logs, err := r.reader.LogsInRange(ctx, snap.LatestConfirmedBlock, newHead)
	if err != nil {
		return err
	}

	view := contractcourt.NewView(snap)

	for _, l := range logs {
		ev, err := events.Decode(l)
		if err != nil {
			log.Warnf("Dropping unparseable log in block %d: %v", l.BlockNumber, err)
			continue
		}
		if err := contractcourt.Reduce(view, ev, r.params); err != nil {
			return err
		}
		msmetrics.EventsProcessedTotal.WithLabelValues(eventName(ev)).Inc()
	}

	if err := contractcourt.Reduce(view, events.TickAdvanced{}, r.params); err != nil {
		return err
	}

	for _, ext := range view.FilterExtensions {
		r.reader.Watch(gethcommon.Address(ext.Address), ext.FromBlock)
	}

	// Selection only re-checks preconditions and discards losers; it never
	// touches the chain writer, so nothing here can have an externally
	// visible side effect before the commit below lands.
	firable := sweep.SelectFirable(view, snap.Due(newHead))

	commit := view.Delta()
	commit.NewHeadBlock = newHead
	commit.FiredActionIDs = sweep.FiredIDs(firable)

	if err := r.db.Commit(ctx, commit); err != nil {
		return err
	}

	r.lastProcessedBlock = newHead
	r.invariantRetries = 0
	msmetrics.TicksTotal.Inc()
	msmetrics.LatestConfirmedBlock.Set(float64(newHead))
	msmetrics.LastTickUnixSeconds.Set(float64(r.clock.Now().Unix()))

	// The chain writer is only ever invoked after the commit above has
	// already marked every action about to fire in-flight (spec.md §4.H
	// step 4): a crash here can at worst leave an action in-flight with
	// no transaction ever broadcast, never submit one twice, since the
	// next tick's Snapshot never reloads an in-flight row.
	for _, f := range sweep.Fire(ctx, view, firable, r.writer) {
		if f.Err != nil {
			continue
		}
		msmetrics.ActionsFiredTotal.WithLabelValues(f.Action.Kind.String()).Inc()

		// ActionClaimRewardTriggered has no later on-chain event to key
		// a completion delete off of (unlike ActionMonitoringTriggered,
		// completed by observing MonitoringAssistedByMS for our own
		// address in contractcourt.reduceMonitoringAssistedByMS); a
		// successfully broadcast claim is deleted immediately, matching
		// the original service's behavior of dropping the monitor
		// request as soon as the settle task is handed off rather than
		// waiting for any further confirmation.
		if f.Action.Kind == channeldb.ActionClaimRewardTriggered {
			ref := channeldb.ActionRef{Kind: f.Action.Kind, Channel: f.Action.Channel}
			if err := r.db.CompleteAction(ctx, ref); err != nil {
				log.Errorf("Unable to complete claim action %v: %v", f.Action.ID, err)
			}
		}
	}

	return nil
}

// handleRequest validates an inbound MonitorRequest against a freshly
// loaded view and, on success, upserts it in its own one-row
// transaction -- request intake writes to channeldb independently of
// the tick loop but, per spec.md §5, never concurrently with it, since
// both run from this single select loop.
func (r *Reactor) handleRequest(ctx context.Context, req intake.Request) error {
	snap, err := r.db.Load(ctx)
	if err != nil {
		return err
	}
	view := contractcourt.NewView(snap)

	stored, err := r.validator.Validate(req, view)
	if err != nil {
		msmetrics.InvalidRequestsTotal.WithLabelValues(rejectKind(err)).Inc()
		return err
	}

	return r.db.Commit(ctx, channeldb.Commit{
		NewHeadBlock:   snap.LatestConfirmedBlock,
		UpsertRequests: []channeldb.MonitorRequest{stored},
	})
}

func rejectKind(err error) string {
	if rejErr, ok := err.(*intake.RejectError); ok {
		return rejErr.Kind.String()
	}
	return "unknown"
}

func eventName(ev events.Event) string {
	switch ev.(type) {
	case events.TokenNetworkCreated:
		return "token_network_created"
	case events.ChannelOpened:
		return "channel_opened"
	case events.ChannelClosed:
		return "channel_closed"
	case events.NonClosingBalanceProofUpdated:
		return "non_closing_balance_proof_updated"
	case events.ChannelSettled:
		return "channel_settled"
	case events.MonitoringAssistedByMS:
		return "monitoring_assisted_by_ms"
	default:
		return "unknown"
	}
}

