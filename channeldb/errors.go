package channeldb

import "fmt"

var (
	ErrNoBlockchainState  = fmt.Errorf("blockchain_state row has not been initialized")
	ErrSchemaMismatch     = fmt.Errorf("database schema version does not match the latest known version")
	ErrChainIDMismatch    = fmt.Errorf("database chain id does not match configured chain id")
	ErrRegistryMismatch   = fmt.Errorf("database registry address does not match configured registry address")
	ErrMonitorMismatch    = fmt.Errorf("database monitor contract address does not match configured address")
	ErrServiceMismatch    = fmt.Errorf("database monitoring service address does not match configured address")

	ErrChannelNotFound = fmt.Errorf("channel does not exist")
	ErrStaleNonce      = fmt.Errorf("monitor request nonce is not higher than the stored nonce")

	ErrDuplicateChannel = fmt.Errorf("channel already exists for this key")
)
