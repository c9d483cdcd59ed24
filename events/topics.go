package events

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Canonical event signatures (spec.md §6). Topic0 of a log is the
// keccak256 of the signature string; precomputing them once at init
// avoids re-hashing on every decode.
const (
	sigTokenNetworkCreated           = "TokenNetworkCreated(address,address)"
	sigChannelOpened                 = "ChannelOpened(uint256,address,address,uint256)"
	sigChannelClosed                 = "ChannelClosed(uint256,address,uint256)"
	sigNonClosingBalanceProofUpdated = "NonClosingBalanceProofUpdated(uint256,address,uint256)"
	sigChannelSettled                = "ChannelSettled(uint256,uint256,uint256)"
	sigNewBalanceProofReceived       = "NewBalanceProofReceived(uint256,address,address,address)"
)

var (
	topicTokenNetworkCreated           = crypto.Keccak256Hash([]byte(sigTokenNetworkCreated))
	topicChannelOpened                 = crypto.Keccak256Hash([]byte(sigChannelOpened))
	topicChannelClosed                 = crypto.Keccak256Hash([]byte(sigChannelClosed))
	topicNonClosingBalanceProofUpdated = crypto.Keccak256Hash([]byte(sigNonClosingBalanceProofUpdated))
	topicChannelSettled                = crypto.Keccak256Hash([]byte(sigChannelSettled))
	topicNewBalanceProofReceived       = crypto.Keccak256Hash([]byte(sigNewBalanceProofReceived))
)

// abiUint256, abiAddress are the argument-type helpers used to build the
// per-event abi.Arguments used for unpacking non-indexed data words.
var (
	abiUint256, _ = abi.NewType("uint256", "", nil)
	abiAddress, _ = abi.NewType("address", "", nil)
)

func arg(t abi.Type, indexed bool) abi.Argument {
	return abi.Argument{Type: t, Indexed: indexed}
}
