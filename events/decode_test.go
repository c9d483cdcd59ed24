package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/channelwatch/msd/channeldb"
)

func packUint256(t *testing.T, v uint64) []byte {
	t.Helper()
	data, err := abi.Arguments{arg(abiUint256, false)}.Pack(new(big.Int).SetUint64(v))
	require.NoError(t, err)
	return data
}

func addrTopic(a gethcommon.Address) gethcommon.Hash {
	var h gethcommon.Hash
	copy(h[12:], a[:])
	return h
}

func uintTopic(v uint64) gethcommon.Hash {
	var h gethcommon.Hash
	new(big.Int).SetUint64(v).FillBytes(h[:])
	return h
}

func TestDecodeChannelOpened(t *testing.T) {
	tokenNetwork := gethcommon.HexToAddress("0x01")
	p1 := gethcommon.HexToAddress("0xc1")
	p2 := gethcommon.HexToAddress("0xc2")

	l := types.Log{
		Address:     tokenNetwork,
		Topics:      []gethcommon.Hash{topicChannelOpened, uintTopic(3), addrTopic(p1), addrTopic(p2)},
		Data:        packUint256(t, 20),
		BlockNumber: 10,
	}

	ev, err := Decode(l)
	require.NoError(t, err)
	opened, ok := ev.(ChannelOpened)
	require.True(t, ok)
	require.EqualValues(t, 3, opened.ChannelID)
	require.EqualValues(t, 20, opened.SettleTimeout)
	require.Equal(t, channeldb.Address(tokenNetwork), opened.TokenNetwork)
	require.Equal(t, channeldb.Address(p1), opened.Participant1)
	require.Equal(t, channeldb.Address(p2), opened.Participant2)
	require.EqualValues(t, 10, ev.Block())
}

func TestDecodeChannelClosed(t *testing.T) {
	tokenNetwork := gethcommon.HexToAddress("0x01")
	closer := gethcommon.HexToAddress("0xc1")

	l := types.Log{
		Address:     tokenNetwork,
		Topics:      []gethcommon.Hash{topicChannelClosed, uintTopic(3), addrTopic(closer)},
		Data:        packUint256(t, 7),
		BlockNumber: 11,
	}

	ev, err := Decode(l)
	require.NoError(t, err)
	closed, ok := ev.(ChannelClosed)
	require.True(t, ok)
	require.EqualValues(t, 3, closed.ChannelID)
	require.EqualValues(t, 7, closed.Nonce)
	require.Equal(t, channeldb.Address(closer), closed.ClosingParticipant)
}

func TestDecodeUnknownTopicIsRejected(t *testing.T) {
	l := types.Log{
		Topics: []gethcommon.Hash{gethcommon.HexToHash("0xdeadbeef")},
	}
	_, err := Decode(l)
	require.ErrorIs(t, err, ErrUnknownLog)
}

func TestDecodeEmptyTopicsIsRejected(t *testing.T) {
	_, err := Decode(types.Log{})
	require.ErrorIs(t, err, ErrUnknownLog)
}

func TestDecodeMonitoringAssistedByMS(t *testing.T) {
	tokenNetwork := gethcommon.HexToAddress("0x01")
	nonClosing := gethcommon.HexToAddress("0xc2")
	ms := gethcommon.HexToAddress("0xff")

	data, err := abi.Arguments{arg(abiAddress, false), arg(abiUint256, false)}.
		Pack(tokenNetwork, new(big.Int).SetUint64(3))
	require.NoError(t, err)

	l := types.Log{
		Topics: []gethcommon.Hash{topicNewBalanceProofReceived, addrTopic(nonClosing), addrTopic(ms)},
		Data:   data,
	}

	ev, err := Decode(l)
	require.NoError(t, err)
	assisted, ok := ev.(MonitoringAssistedByMS)
	require.True(t, ok)
	require.Equal(t, channeldb.Address(tokenNetwork), assisted.TokenNetwork)
	require.EqualValues(t, 3, assisted.ChannelID)
	require.Equal(t, channeldb.Address(nonClosing), assisted.NonClosingParticipant)
	require.Equal(t, channeldb.Address(ms), assisted.MSAddress)
}
