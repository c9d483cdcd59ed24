package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/channelwatch/msd/channeldb"
)

// ErrUnknownLog is returned (not fatal) for any log whose topic0 isn't
// one of the six signatures this service understands. Callers log and
// drop it per spec.md §4.B.
var ErrUnknownLog = fmt.Errorf("log does not match a known event signature")

// Decode translates a single confirmed go-ethereum log into a typed
// domain event. Token-network events share one topic0 across every
// token-network instance, so their TokenNetwork field is taken from the
// emitting contract's address (log.Address).
func Decode(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, ErrUnknownLog
	}

	b := base{block: log.BlockNumber}

	switch log.Topics[0] {
	case topicTokenNetworkCreated:
		return decodeTokenNetworkCreated(b, log)
	case topicChannelOpened:
		return decodeChannelOpened(b, log)
	case topicChannelClosed:
		return decodeChannelClosed(b, log)
	case topicNonClosingBalanceProofUpdated:
		return decodeNonClosingBalanceProofUpdated(b, log)
	case topicChannelSettled:
		return decodeChannelSettled(b, log)
	case topicNewBalanceProofReceived:
		return decodeMonitoringAssistedByMS(b, log)
	default:
		return nil, ErrUnknownLog
	}
}

func topicAddress(t gethcommon.Hash) channeldb.Address {
	var a channeldb.Address
	copy(a[:], t[12:])
	return a
}

func topicUint64(t gethcommon.Hash) uint64 {
	return new(big.Int).SetBytes(t[:]).Uint64()
}

func decodeTokenNetworkCreated(b base, log types.Log) (Event, error) {
	if len(log.Topics) < 3 {
		return nil, ErrUnknownLog
	}
	return TokenNetworkCreated{
		base:                 b,
		TokenNetworkAddress:  topicAddress(log.Topics[1]),
	}, nil
}

func decodeChannelOpened(b base, log types.Log) (Event, error) {
	if len(log.Topics) < 4 {
		return nil, ErrUnknownLog
	}
	args := abi.Arguments{arg(abiUint256, false)}
	vals, err := args.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack ChannelOpened data: %w", err)
	}
	settleTimeout := vals[0].(*big.Int).Uint64()

	return ChannelOpened{
		base:          b,
		TokenNetwork:  topicAddress(log.Address.Hash()),
		ChannelID:     topicUint64(log.Topics[1]),
		Participant1:  topicAddress(log.Topics[2]),
		Participant2:  topicAddress(log.Topics[3]),
		SettleTimeout: settleTimeout,
	}, nil
}

func decodeChannelClosed(b base, log types.Log) (Event, error) {
	if len(log.Topics) < 3 {
		return nil, ErrUnknownLog
	}
	args := abi.Arguments{arg(abiUint256, false)}
	vals, err := args.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack ChannelClosed data: %w", err)
	}
	nonce := vals[0].(*big.Int).Uint64()

	return ChannelClosed{
		base:               b,
		TokenNetwork:       topicAddress(log.Address.Hash()),
		ChannelID:          topicUint64(log.Topics[1]),
		ClosingParticipant: topicAddress(log.Topics[2]),
		Nonce:              nonce,
	}, nil
}

func decodeNonClosingBalanceProofUpdated(b base, log types.Log) (Event, error) {
	if len(log.Topics) < 3 {
		return nil, ErrUnknownLog
	}
	args := abi.Arguments{arg(abiUint256, false)}
	vals, err := args.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack NonClosingBalanceProofUpdated data: %w", err)
	}
	nonce := vals[0].(*big.Int).Uint64()

	return NonClosingBalanceProofUpdated{
		base:               b,
		TokenNetwork:       topicAddress(log.Address.Hash()),
		ChannelID:          topicUint64(log.Topics[1]),
		ClosingParticipant: topicAddress(log.Topics[2]),
		Nonce:              nonce,
	}, nil
}

func decodeChannelSettled(b base, log types.Log) (Event, error) {
	if len(log.Topics) < 2 {
		return nil, ErrUnknownLog
	}
	return ChannelSettled{
		base:         b,
		TokenNetwork: topicAddress(log.Address.Hash()),
		ChannelID:    topicUint64(log.Topics[1]),
	}, nil
}

func decodeMonitoringAssistedByMS(b base, log types.Log) (Event, error) {
	if len(log.Topics) < 3 {
		return nil, ErrUnknownLog
	}
	args := abi.Arguments{arg(abiAddress, false), arg(abiUint256, false)}
	vals, err := args.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack NewBalanceProofReceived data: %w", err)
	}
	tokenNetwork := vals[0].(gethcommon.Address)
	channelID := vals[1].(*big.Int).Uint64()

	return MonitoringAssistedByMS{
		base:                  b,
		TokenNetwork:          channeldb.Address(tokenNetwork),
		ChannelID:             channelID,
		NonClosingParticipant: topicAddress(log.Topics[1]),
		MSAddress:             topicAddress(log.Topics[2]),
	}, nil
}
