package chainntfs

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	head uint64
	logs []types.Log
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	addrSet := make(map[common.Address]bool, len(q.Addresses))
	for _, a := range q.Addresses {
		addrSet[a] = true
	}

	var out []types.Log
	for _, l := range f.logs {
		if !addrSet[l.Address] {
			continue
		}
		if l.BlockNumber > q.FromBlock.Uint64() && l.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, l)
		}
	}
	return out, nil
}

var registry = common.HexToAddress("0x01")
var monitoringService = common.HexToAddress("0x02")

func newTestReader(client Client) *Reader {
	return NewReader(Config{
		Client:                client,
		RequiredConfirmations: 10,
		Registry:              registry,
		MonitoringService:     monitoringService,
		SyncStartBlock:        0,
	})
}

func TestConfirmedHeadSubtractsConfirmationDepth(t *testing.T) {
	r := newTestReader(&fakeClient{head: 100})
	head, err := r.ConfirmedHead(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 90, head)
}

func TestConfirmedHeadClampsToZeroBelowConfirmationDepth(t *testing.T) {
	r := newTestReader(&fakeClient{head: 3})
	head, err := r.ConfirmedHead(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, head)
}

func TestLogsInRangeOrdersByBlockThenIndex(t *testing.T) {
	client := &fakeClient{
		logs: []types.Log{
			{Address: registry, BlockNumber: 12, Index: 3},
			{Address: registry, BlockNumber: 10, Index: 5},
			{Address: registry, BlockNumber: 10, Index: 1},
		},
	}
	r := newTestReader(client)

	logs, err := r.LogsInRange(context.Background(), 5, 20)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.EqualValues(t, 10, logs[0].BlockNumber)
	require.EqualValues(t, 1, logs[0].Index)
	require.EqualValues(t, 10, logs[1].BlockNumber)
	require.EqualValues(t, 5, logs[1].Index)
	require.EqualValues(t, 12, logs[2].BlockNumber)
}

func TestLogsInRangeIncludesNewlyWatchedContract(t *testing.T) {
	tokenNetwork := common.HexToAddress("0x03")
	client := &fakeClient{
		logs: []types.Log{
			{Address: tokenNetwork, BlockNumber: 15, Index: 0},
		},
	}
	r := newTestReader(client)
	r.Watch(tokenNetwork, 14)

	logs, err := r.LogsInRange(context.Background(), 5, 20)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestLogsInRangeSkipsContractsNotYetWatched(t *testing.T) {
	tokenNetwork := common.HexToAddress("0x03")
	client := &fakeClient{
		logs: []types.Log{
			{Address: tokenNetwork, BlockNumber: 15, Index: 0},
		},
	}
	r := newTestReader(client)
	r.Watch(tokenNetwork, 16)

	logs, err := r.LogsInRange(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Empty(t, logs)
}
