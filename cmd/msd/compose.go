package main

import (
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/channelwatch/msd/chainwriter"
	"github.com/channelwatch/msd/intake"
)

// newIntake wires up the default in-process transport: a watermill
// gochannel pub/sub, which only delivers messages published within this
// same process; nothing in this binary publishes to it. Another watermill
// driver can be swapped in here without changing package intake at all.
func newIntake() (*intake.Intake, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	return intake.NewIntake(pubSub)
}

func loadSigner(keystorePath, passphrase string) (*chainwriter.PrivateKeySigner, error) {
	keyBytes, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	key, err := crypto.HexToECDSA(string(keyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	return chainwriter.NewPrivateKeySigner(key), nil
}
