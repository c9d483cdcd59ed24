package chainwriter

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// monitorABIJSON and userDepositABIJSON declare only the two methods this
// service ever calls; the monitoring-service and user-deposit contracts
// expose more surface than this, but nothing else here is ever packed.
const monitorABIJSON = `[{
	"name": "monitor",
	"type": "function",
	"inputs": [
		{"name": "tokenNetwork", "type": "address"},
		{"name": "channelIdentifier", "type": "uint256"},
		{"name": "nonClosingSignature", "type": "bytes"},
		{"name": "closingSignature", "type": "bytes"},
		{"name": "balanceHash", "type": "bytes32"},
		{"name": "additionalHash", "type": "bytes32"},
		{"name": "nonce", "type": "uint256"},
		{"name": "reward", "type": "uint256"},
		{"name": "rewardProofSignature", "type": "bytes"}
	]
}]`

const userDepositABIJSON = `[{
	"name": "claimReward",
	"type": "function",
	"inputs": [
		{"name": "channelIdentifier", "type": "uint256"},
		{"name": "tokenNetwork", "type": "address"},
		{"name": "closingParticipant", "type": "address"}
	]
}]`

// MonitorABI parses the monitoring-service contract's monitor(...) method.
func MonitorABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(monitorABIJSON))
}

// UserDepositABI parses the user-deposit contract's claimReward(...) method.
func UserDepositABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(userDepositABIJSON))
}
