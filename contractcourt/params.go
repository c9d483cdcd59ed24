package contractcourt

// Params carries the per-network configuration the reducer is
// parameterized by (spec.md §6's configuration table). It is threaded
// through explicitly rather than held in a global, per the design note
// on replacing singleton web3/contract managers with an explicit
// context passed to the reducer and writer.
type Params struct {
	// MonitorFraction is the fraction of settle_timeout, in (0, 1),
	// after which a monitoring action fires following ChannelClosed.
	// Default 0.8 per spec.md §4.D; the precise value is an open
	// question flagged for confirmation against production config.
	MonitorFraction float64

	// ClaimDelayBlocks is the number of blocks after ChannelSettled at
	// which a reward-claim action fires.
	ClaimDelayBlocks uint64

	// OurAddress is this monitoring service's own on-chain identity,
	// used to decide reward-claim eligibility when comparing against an
	// observed MonitoringAssistedByMS.MSAddress.
	OurAddress [20]byte
}
