// Package chainntfs polls an Ethereum-style JSON-RPC node for confirmed
// logs emitted by the registry, the dynamic set of token-network
// contracts, and the monitoring-service contract. It replaces the
// teacher's namesake chain-notification package -- built there on
// btcd's rescan/ZMQ backends for a UTXO chain -- with an
// ethclient.FilterLogs poll loop suited to an account-based chain,
// while keeping its interface shape (a reader you configure, then pull
// confirmed events from) and its backoff-wrapped RPC discipline.
package chainntfs

import (
	"context"
	"math/big"
	"sort"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/channelwatch/msd/mslog"
)

var log = mslog.Logger("CHNF")

// Client is the subset of ethclient.Client the reader depends on, so
// tests can substitute a fake RPC backend.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

var _ Client = (*ethclient.Client)(nil)

// Reader polls confirmed logs for a dynamic set of watched addresses.
// It holds no channel/request state -- that lives in channeldb -- only
// the addresses it currently filters on and the retry policy around the
// underlying RPC client.
type Reader struct {
	client Client

	requiredConfirmations uint64

	// watched maps contract address to the block its filter became
	// active at. An address is left out of any poll whose range ends
	// before that block; a poll whose range reaches it queries the whole
	// range for that address.
	watched map[common.Address]uint64

	backoff func() backoff.BackOff
}

// Config bundles Reader's fixed startup parameters.
type Config struct {
	Client                Client
	RequiredConfirmations uint64
	Registry              common.Address
	MonitoringService     common.Address
	SyncStartBlock        uint64
}

// NewReader constructs a Reader watching the registry and the
// monitoring-service contract from SyncStartBlock. Token networks
// discovered later are added via Watch.
func NewReader(cfg Config) *Reader {
	r := &Reader{
		client:                cfg.Client,
		requiredConfirmations: cfg.RequiredConfirmations,
		watched:               make(map[common.Address]uint64),
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	r.watched[cfg.Registry] = cfg.SyncStartBlock
	r.watched[cfg.MonitoringService] = cfg.SyncStartBlock
	return r
}

// Watch adds a newly discovered token-network contract to the filter
// set, starting at fromBlock -- invoked by the main loop after the
// reducer emits a contractcourt.FilterExtension for a
// TokenNetworkCreated event (spec.md §4.A/§4.D).
func (r *Reader) Watch(addr common.Address, fromBlock uint64) {
	if _, ok := r.watched[addr]; ok {
		return
	}
	r.watched[addr] = fromBlock
	log.Infof("Now watching contract %s from block %d", addr, fromBlock)
}

// ConfirmedHead returns the latest confirmed block: the node's reported
// head minus the configured confirmation depth. Logs at or before this
// block are considered final; shallower reorgs are masked by
// construction (spec.md §4.A, §9 open question on reorg handling).
func (r *Reader) ConfirmedHead(ctx context.Context) (uint64, error) {
	var head uint64
	op := func() error {
		h, err := r.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = h
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(r.backoff(), ctx)); err != nil {
		return 0, err
	}

	if head < r.requiredConfirmations {
		return 0, nil
	}
	return head - r.requiredConfirmations, nil
}

// LogsInRange returns every confirmed log across all watched contracts
// with block number in (fromBlock, toBlock], canonically ordered by
// (block number, log index) -- tx_index is not separately available
// from eth_getLogs, so log index (unique within a block across all
// transactions for most clients) stands in for the
// (block, tx_index, log_index) ordering key from spec.md §5.
func (r *Reader) LogsInRange(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var addrs []common.Address
	for addr, since := range r.watched {
		if since <= toBlock {
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, nil
	}

	var logs []types.Log
	op := func() error {
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock + 1),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: addrs,
		}
		got, err := r.client.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = got
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(r.backoff(), ctx)); err != nil {
		return nil, err
	}

	sortLogs(logs)
	return logs, nil
}

func sortLogs(logs []types.Log) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
}
