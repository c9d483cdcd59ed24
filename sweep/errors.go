package sweep

import (
	"fmt"

	"github.com/channelwatch/msd/channeldb"
)

func errUnknownActionKind(k channeldb.ActionKind) error {
	return fmt.Errorf("sweep: unknown action kind %v", k)
}
