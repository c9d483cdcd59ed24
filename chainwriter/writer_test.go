package chainwriter

import (
	"context"
	"math/big"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/channelwatch/msd/channeldb"
)

type fakeSender struct {
	sent  []*types.Transaction
	nonce uint64
}

func (f *fakeSender) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeSender) PendingNonceAt(ctx context.Context, account gethcommon.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeSender) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

type fakeSigner struct {
	addr gethcommon.Address
}

func (s *fakeSigner) Address() gethcommon.Address { return s.addr }

func (s *fakeSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return tx, nil
}

func newTestWriter(t *testing.T, sender *fakeSender) *Writer {
	t.Helper()
	monitorABI, err := MonitorABI()
	require.NoError(t, err)
	userDepositABI, err := UserDepositABI()
	require.NoError(t, err)

	return New(Config{
		Client:          sender,
		Signer:          &fakeSigner{addr: gethcommon.HexToAddress("0xaa")},
		ChainID:         big.NewInt(1),
		MonitorContract: gethcommon.HexToAddress("0xbb"),
		UserDepositAddr: gethcommon.HexToAddress("0xcc"),
		MonitorABI:      monitorABI,
		UserDepositABI:  userDepositABI,
		GasLimit:        200000,
	})
}

func TestMonitorPacksAndSendsATransaction(t *testing.T) {
	sender := &fakeSender{nonce: 3}
	w := newTestWriter(t, sender)

	req := channeldb.MonitorRequest{
		Key:   channeldb.RequestKey{TokenNetwork: channeldb.Address{0x01}, ChannelID: 3, NonClosingParticipant: channeldb.Address{0xc2}},
		Nonce: 5,
	}

	hash, err := w.Monitor(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, channeldb.Hash32{}, hash)
	require.Len(t, sender.sent, 1)
	require.EqualValues(t, 3, sender.sent[0].Nonce())
	require.Equal(t, gethcommon.HexToAddress("0xbb"), *sender.sent[0].To())
}

func TestClaimRewardPacksAndSendsATransaction(t *testing.T) {
	sender := &fakeSender{nonce: 7}
	w := newTestWriter(t, sender)

	closing := channeldb.Address{0xc1}
	ch := channeldb.Channel{
		Key:                channeldb.ChannelKey{TokenNetwork: channeldb.Address{0x01}, ChannelID: 3},
		ClosingParticipant: &closing,
	}

	hash, err := w.ClaimReward(context.Background(), ch)
	require.NoError(t, err)
	require.NotEqual(t, channeldb.Hash32{}, hash)
	require.Len(t, sender.sent, 1)
	require.Equal(t, gethcommon.HexToAddress("0xcc"), *sender.sent[0].To())
}
