package chainwriter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/channelwatch/msd/channeldb"
)

// EthRecoverer implements intake.Recoverer using go-ethereum's
// secp256k1 signature recovery. It is the concrete adapter wired at the
// composition root; package intake only ever depends on the Recoverer
// interface so its own tests can use a stub.
type EthRecoverer struct{}

func (EthRecoverer) Recover(hash channeldb.Hash32, sig channeldb.Signature) (channeldb.Address, error) {
	pub, err := crypto.SigToPub(hash[:], sig[:])
	if err != nil {
		return channeldb.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return channeldb.Address(crypto.PubkeyToAddress(*pub)), nil
}
