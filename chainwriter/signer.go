package chainwriter

import (
	"crypto/ecdsa"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKeySigner signs transactions with an in-process ECDSA key. It
// is the concrete Signer used at the composition root; everything else
// in this package depends on the Signer interface instead.
type PrivateKeySigner struct {
	key  *ecdsa.PrivateKey
	addr gethcommon.Address
}

// NewPrivateKeySigner wraps key, deriving its address once up front.
func NewPrivateKeySigner(key *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *PrivateKeySigner) Address() gethcommon.Address {
	return s.addr
}

func (s *PrivateKeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.NewEIP155Signer(chainID)
	return types.SignTx(tx, signer, s.key)
}
