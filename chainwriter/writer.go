// Package chainwriter crafts, signs, and submits the two contract calls
// this service ever emits: monitor(...) and claimReward(...) (spec.md
// §4.G, §6). It is not responsible for receipt confirmation -- for
// monitor(...) that loop closes when the chain follower later observes
// MonitoringAssistedByMS on-chain; a claimReward(...) call has no such
// follow-up event, and the main loop deletes its action after a
// successful submission.
package chainwriter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/mslog"
)

var log = mslog.Logger("CHWR")

// Signer produces a raw signed transaction for the given chain id, kept
// as an interface so the MS private key never has to be handed to code
// outside the composition root.
type Signer interface {
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	Address() gethcommon.Address
}

// Sender is the subset of ethclient.Client the writer depends on.
type Sender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	PendingNonceAt(ctx context.Context, account gethcommon.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

var _ Sender = (*ethclient.Client)(nil)

// Writer is the concrete chain writer used by package sweep.
type Writer struct {
	client Sender
	signer Signer

	chainID           *big.Int
	monitorContract   gethcommon.Address
	userDepositAddr   gethcommon.Address
	monitorABI        abi.ABI
	userDepositABI    abi.ABI
	gasLimit          uint64
}

// Config bundles Writer's fixed startup parameters.
type Config struct {
	Client          Sender
	Signer          Signer
	ChainID         *big.Int
	MonitorContract gethcommon.Address
	UserDepositAddr gethcommon.Address
	MonitorABI      abi.ABI
	UserDepositABI  abi.ABI
	GasLimit        uint64
}

// New constructs a Writer from cfg.
func New(cfg Config) *Writer {
	return &Writer{
		client:          cfg.Client,
		signer:          cfg.Signer,
		chainID:         cfg.ChainID,
		monitorContract: cfg.MonitorContract,
		userDepositAddr: cfg.UserDepositAddr,
		monitorABI:      cfg.MonitorABI,
		userDepositABI:  cfg.UserDepositABI,
		gasLimit:        cfg.GasLimit,
	}
}

// Monitor submits req's stored balance proof and reward proof via the
// monitoring-service contract's monitor(...) call.
func (w *Writer) Monitor(ctx context.Context, req channeldb.MonitorRequest) (channeldb.Hash32, error) {
	data, err := w.monitorABI.Pack("monitor",
		gethcommon.Address(req.Key.TokenNetwork),
		new(big.Int).SetUint64(req.Key.ChannelID),
		req.NonClosingSignature[:],
		req.ClosingSignature[:],
		req.BalanceHash[:],
		req.AdditionalHash[:],
		new(big.Int).SetUint64(req.Nonce),
		new(big.Int).SetUint64(req.RewardAmount),
		req.RewardProofSignature[:],
	)
	if err != nil {
		return channeldb.Hash32{}, err
	}

	return w.craftSignSend(ctx, w.monitorContract, data)
}

// ClaimReward submits a claimReward(...) call for a settled channel this
// service assisted.
func (w *Writer) ClaimReward(ctx context.Context, ch channeldb.Channel) (channeldb.Hash32, error) {
	var closingParticipant gethcommon.Address
	if ch.ClosingParticipant != nil {
		closingParticipant = gethcommon.Address(*ch.ClosingParticipant)
	}

	data, err := w.userDepositABI.Pack("claimReward",
		new(big.Int).SetUint64(ch.Key.ChannelID),
		gethcommon.Address(ch.Key.TokenNetwork),
		closingParticipant,
	)
	if err != nil {
		return channeldb.Hash32{}, err
	}

	return w.craftSignSend(ctx, w.userDepositAddr, data)
}

func (w *Writer) craftSignSend(ctx context.Context, to gethcommon.Address, data []byte) (channeldb.Hash32, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.signer.Address())
	if err != nil {
		return channeldb.Hash32{}, err
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return channeldb.Hash32{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      w.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := w.signer.SignTx(tx, w.chainID)
	if err != nil {
		return channeldb.Hash32{}, err
	}

	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		return channeldb.Hash32{}, err
	}

	log.Infof("Submitted transaction %s to %s", signedTx.Hash(), to)

	return channeldb.Hash32(signedTx.Hash()), nil
}
