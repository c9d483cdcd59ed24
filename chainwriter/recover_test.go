package chainwriter

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/channelwatch/msd/channeldb"
)

func TestEthRecovererRecoversTheSigningAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	var hash channeldb.Hash32
	copy(hash[:], crypto.Keccak256([]byte("balance-proof")))

	sig, err := crypto.Sign(hash[:], key)
	require.NoError(t, err)

	var sigArr channeldb.Signature
	copy(sigArr[:], sig)

	recovered, err := (EthRecoverer{}).Recover(hash, sigArr)
	require.NoError(t, err)
	require.Equal(t, channeldb.Address(addr), recovered)
}
