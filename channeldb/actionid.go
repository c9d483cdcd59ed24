package channeldb

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// DeriveActionID computes the deterministic identifier for a scheduled
// action from its (kind, channel, trigger_block) triple. Two ticks that
// reduce the same event stream always derive the same ID for the same
// logical action, which is what lets the fired_action_ids set in Commit
// de-duplicate across a replay (spec.md §8 determinism law).
func DeriveActionID(kind ActionKind, ch ChannelKey, triggerBlock uint64) string {
	buf := make([]byte, 0, 1+20+8+8)
	buf = append(buf, byte(kind))
	buf = append(buf, ch.TokenNetwork[:]...)
	buf = binary.BigEndian.AppendUint64(buf, ch.ChannelID)
	buf = binary.BigEndian.AppendUint64(buf, triggerBlock)

	h := crypto.Keccak256(buf)
	return hex.EncodeToString(h)
}
