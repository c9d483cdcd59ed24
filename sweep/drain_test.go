package sweep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/contractcourt"
	"github.com/channelwatch/msd/events"
)

var (
	tokenNetwork = channeldb.Address{0x01}
	c1           = channeldb.Address{0xc1}
	c2           = channeldb.Address{0xc2}
)

type fakeWriter struct {
	monitorCalls []channeldb.MonitorRequest
	claimCalls   []channeldb.Channel
	monitorErr   error
}

func (f *fakeWriter) Monitor(ctx context.Context, req channeldb.MonitorRequest) (channeldb.Hash32, error) {
	if f.monitorErr != nil {
		return channeldb.Hash32{}, f.monitorErr
	}
	f.monitorCalls = append(f.monitorCalls, req)
	return channeldb.Hash32{0xaa}, nil
}

func (f *fakeWriter) ClaimReward(ctx context.Context, ch channeldb.Channel) (channeldb.Hash32, error) {
	f.claimCalls = append(f.claimCalls, ch)
	return channeldb.Hash32{0xbb}, nil
}

func buildClosedChannelView(t *testing.T) (*contractcourt.View, channeldb.ChannelKey) {
	t.Helper()
	snap := &channeldb.Snapshot{
		TokenNetworks: make(map[channeldb.Address]channeldb.TokenNetwork),
		Channels:      make(map[channeldb.ChannelKey]channeldb.Channel),
		Requests:      make(map[channeldb.RequestKey]channeldb.MonitorRequest),
	}
	key := channeldb.ChannelKey{TokenNetwork: tokenNetwork, ChannelID: 3}
	requestKey := channeldb.RequestKey{TokenNetwork: tokenNetwork, ChannelID: 3, NonClosingParticipant: c2}
	snap.Requests[requestKey] = channeldb.MonitorRequest{Key: requestKey, Nonce: 5}

	v := contractcourt.NewView(snap)
	params := contractcourt.Params{MonitorFraction: 0.8, ClaimDelayBlocks: 5}

	require.NoError(t, contractcourt.Reduce(v, events.ChannelOpened{
		TokenNetwork: tokenNetwork, ChannelID: 3,
		Participant1: c1, Participant2: c2, SettleTimeout: 20,
	}, params))
	require.NoError(t, contractcourt.Reduce(v, events.ChannelClosed{
		TokenNetwork: tokenNetwork, ChannelID: 3,
		ClosingParticipant: c1, Nonce: 1,
	}, params))

	return v, key
}

func TestSelectFirableKeepsActionWithLiveMonitorPrecondition(t *testing.T) {
	v, key := buildClosedChannelView(t)

	action := channeldb.ScheduledAction{
		ID: "a", Kind: channeldb.ActionMonitoringTriggered,
		Channel: key, NonClosingParticipant: c2, TriggerBlock: 26,
	}

	firable := SelectFirable(v, []channeldb.ScheduledAction{action})

	require.Equal(t, []channeldb.ScheduledAction{action}, firable)
	require.Equal(t, []string{"a"}, FiredIDs(firable))
}

func TestSelectFirableDiscardsActionWhosePreconditionFailed(t *testing.T) {
	v, key := buildClosedChannelView(t)
	params := contractcourt.Params{MonitorFraction: 0.8}

	require.NoError(t, contractcourt.Reduce(v, events.NonClosingBalanceProofUpdated{
		TokenNetwork: tokenNetwork, ChannelID: 3,
		ClosingParticipant: c1, Nonce: 5,
	}, params))

	action := channeldb.ScheduledAction{
		ID: "a", Kind: channeldb.ActionMonitoringTriggered,
		Channel: key, NonClosingParticipant: c2, TriggerBlock: 26,
	}

	firable := SelectFirable(v, []channeldb.ScheduledAction{action})

	require.Empty(t, firable)
	require.Empty(t, FiredIDs(firable))
}

func TestFireInvokesMonitorForEachFirableAction(t *testing.T) {
	v, key := buildClosedChannelView(t)
	w := &fakeWriter{}

	action := channeldb.ScheduledAction{
		ID: "a", Kind: channeldb.ActionMonitoringTriggered,
		Channel: key, NonClosingParticipant: c2, TriggerBlock: 26,
	}

	fires := Fire(context.Background(), v, []channeldb.ScheduledAction{action}, w)

	require.Len(t, fires, 1)
	require.NoError(t, fires[0].Err)
	require.Len(t, w.monitorCalls, 1)
	require.EqualValues(t, 5, w.monitorCalls[0].Nonce)
}

func TestFireReportsWriterErrorWithoutPanicking(t *testing.T) {
	v, key := buildClosedChannelView(t)
	w := &fakeWriter{monitorErr: context.DeadlineExceeded}

	action := channeldb.ScheduledAction{
		ID: "a", Kind: channeldb.ActionMonitoringTriggered,
		Channel: key, NonClosingParticipant: c2, TriggerBlock: 26,
	}

	fires := Fire(context.Background(), v, []channeldb.ScheduledAction{action}, w)

	require.Len(t, fires, 1)
	require.ErrorIs(t, fires[0].Err, context.DeadlineExceeded)
	require.Empty(t, w.monitorCalls)
}
