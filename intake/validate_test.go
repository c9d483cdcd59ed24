package intake

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/contractcourt"
)

var (
	tokenNetwork = channeldb.Address{0x01}
	c1           = channeldb.Address{0xc1}
	c2           = channeldb.Address{0xc2}
	msc          = channeldb.Address{0xff}
)

// fakeRecoverer maps a signature's first byte to a fixed address, letting
// tests pick which signer "recovers" without a real private key.
type fakeRecoverer struct {
	bySigByte map[byte]channeldb.Address
	err       error
}

func (f *fakeRecoverer) Recover(hash channeldb.Hash32, sig channeldb.Signature) (channeldb.Address, error) {
	if f.err != nil {
		return channeldb.Address{}, f.err
	}
	return f.bySigByte[sig[0]], nil
}

func openChannelView(t *testing.T, state channeldb.ChannelState) *contractcourt.View {
	t.Helper()
	key := channeldb.ChannelKey{TokenNetwork: tokenNetwork, ChannelID: 3}
	snap := &channeldb.Snapshot{
		TokenNetworks: make(map[channeldb.Address]channeldb.TokenNetwork),
		Channels: map[channeldb.ChannelKey]channeldb.Channel{
			key: {Key: key, Participant1: c1, Participant2: c2, SettleTimeout: 20, State: state},
		},
		Requests: make(map[channeldb.RequestKey]channeldb.MonitorRequest),
	}
	return contractcourt.NewView(snap)
}

func closedChannelViewWithLastNonce(t *testing.T, lastNonce uint64) *contractcourt.View {
	t.Helper()
	key := channeldb.ChannelKey{TokenNetwork: tokenNetwork, ChannelID: 3}
	snap := &channeldb.Snapshot{
		TokenNetworks: make(map[channeldb.Address]channeldb.TokenNetwork),
		Channels: map[channeldb.ChannelKey]channeldb.Channel{
			key: {
				Key: key, Participant1: c1, Participant2: c2, SettleTimeout: 20,
				State: channeldb.ChannelClosed, LastNonce: &lastNonce,
			},
		},
		Requests: make(map[channeldb.RequestKey]channeldb.MonitorRequest),
	}
	return contractcourt.NewView(snap)
}

func validRequest() Request {
	req := Request{
		ChannelID:             3,
		TokenNetwork:          tokenNetwork,
		NonClosingParticipant: c2,
		Nonce:                 5,
		BalanceHash:           channeldb.Hash32{0x01},
		AdditionalHash:        channeldb.Hash32{0x02},
		ChainID:               1,
		MSCAddress:            msc,
		RewardAmount:          1,
	}
	req.ClosingSignature[0] = 0x01
	req.NonClosingSignature[0] = 0x02
	req.RewardProofSignature[0] = 0x03
	return req
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: c1, 0x02: c2}}, msc, 1)
	view := openChannelView(t, channeldb.ChannelOpened)

	stored, err := v.Validate(validRequest(), view)
	require.NoError(t, err)
	require.EqualValues(t, 5, stored.Nonce)
	require.Equal(t, msc, stored.MSCAddress)
}

func TestValidateRejectsStructurallyIncomplete(t *testing.T) {
	v := NewValidator(&fakeRecoverer{}, msc, 1)
	view := openChannelView(t, channeldb.ChannelOpened)

	req := validRequest()
	req.Nonce = 0

	_, err := v.Validate(req, view)
	require.Error(t, err)
	var rejErr *RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, RejectStructural, rejErr.Kind)
}

func TestValidateRejectsUnknownChannel(t *testing.T) {
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: c1, 0x02: c2}}, msc, 1)
	view := contractcourt.NewView(&channeldb.Snapshot{
		TokenNetworks: make(map[channeldb.Address]channeldb.TokenNetwork),
		Channels:      make(map[channeldb.ChannelKey]channeldb.Channel),
		Requests:      make(map[channeldb.RequestKey]channeldb.MonitorRequest),
	})

	_, err := v.Validate(validRequest(), view)
	var rejErr *RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, RejectChannelState, rejErr.Kind)
}

func TestValidateRejectsSignerNotInChannel(t *testing.T) {
	other := channeldb.Address{0xaa}
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: other, 0x02: c2}}, msc, 1)
	view := openChannelView(t, channeldb.ChannelOpened)

	_, err := v.Validate(validRequest(), view)
	var rejErr *RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, RejectSignature, rejErr.Kind)
}

func TestValidateRejectsWrongJurisdiction(t *testing.T) {
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: c1, 0x02: c2}}, msc, 1)
	view := openChannelView(t, channeldb.ChannelOpened)

	req := validRequest()
	req.ChainID = 999

	_, err := v.Validate(req, view)
	var rejErr *RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, RejectJurisdiction, rejErr.Kind)
}

func TestValidateAcceptsFirstRequestOnClosedChannel(t *testing.T) {
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: c1, 0x02: c2}}, msc, 1)
	view := openChannelView(t, channeldb.ChannelClosed)

	req := validRequest()
	req.Nonce = 5

	// A closed channel with no stored request and no on-chain nonce
	// recorded has nothing for the nonce to be stale against, so the
	// request is accepted. Validate stores nothing itself.
	_, err := v.Validate(req, view)
	require.NoError(t, err)
}

func TestValidateRejectsNonceNotExceedingOnChainLastNonce(t *testing.T) {
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: c1, 0x02: c2}}, msc, 1)
	view := closedChannelViewWithLastNonce(t, 5)

	req := validRequest()
	req.Nonce = 5

	_, err := v.Validate(req, view)
	var rejErr *RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, RejectStaleNonce, rejErr.Kind)
}

func TestValidateAcceptsNonceExceedingOnChainLastNonce(t *testing.T) {
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: c1, 0x02: c2}}, msc, 1)
	view := closedChannelViewWithLastNonce(t, 5)

	req := validRequest()
	req.Nonce = 6

	_, err := v.Validate(req, view)
	require.NoError(t, err)
}

func TestValidateRejectsTerminalChannelState(t *testing.T) {
	v := NewValidator(&fakeRecoverer{bySigByte: map[byte]channeldb.Address{0x01: c1, 0x02: c2}}, msc, 1)
	view := openChannelView(t, channeldb.ChannelSettled)

	_, err := v.Validate(validRequest(), view)
	var rejErr *RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, RejectChannelState, rejErr.Kind)
}
