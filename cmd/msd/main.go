package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/urfave/cli"

	"github.com/channelwatch/msd/chainntfs"
	"github.com/channelwatch/msd/chainwriter"
	"github.com/channelwatch/msd/channeldb"
	"github.com/channelwatch/msd/contractcourt"
	"github.com/channelwatch/msd/intake"
	"github.com/channelwatch/msd/mainloop"
	"github.com/channelwatch/msd/msconfig"
	"github.com/channelwatch/msd/mslog"
	"github.com/channelwatch/msd/msmetrics"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[msd] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "msd"
	app.Usage = "generalized-state-channel monitoring service daemon"
	app.Commands = []cli.Command{
		runCommand,
		statusCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

var runCommand = cli.Command{
	Name:  "run",
	Usage: "run the monitoring service until terminated",
	Action: func(c *cli.Context) error {
		return run()
	},
}

func run() error {
	cfg, err := msconfig.LoadConfig()
	if err != nil {
		return err
	}

	closeLog, err := mslog.InitBackend(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	log := mslog.Logger("MSD ")

	ethClient, err := ethclient.Dial(cfg.EthRPCURL)
	if err != nil {
		return fmt.Errorf("unable to connect to Ethereum node: %w", err)
	}

	reportedChainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return fmt.Errorf("unable to query chain id: %w", err)
	}
	if reportedChainID.Uint64() != cfg.ChainID {
		return fmt.Errorf("%w: node reports %d, configured %d",
			channeldb.ErrChainIDMismatch, reportedChainID.Uint64(), cfg.ChainID)
	}

	expect := channeldb.BlockchainState{
		ChainID:                     cfg.ChainID,
		TokenNetworkRegistryAddress: mustAddr(cfg.RegistryAddress),
		MonitorContractAddress:      mustAddr(cfg.MonitoringServiceAddress),
		MonitoringServiceAddress:    mustAddr(cfg.MonitoringServiceAddress),
	}

	ctx := context.Background()
	db, err := channeldb.Open(ctx, cfg.Postgres, expect)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	defer db.Close()

	reader := chainntfs.NewReader(chainntfs.Config{
		Client:                ethClient,
		RequiredConfirmations: cfg.RequiredConfirmations,
		Registry:              gethcommon.HexToAddress(cfg.RegistryAddress),
		MonitoringService:     gethcommon.HexToAddress(cfg.MonitoringServiceAddress),
		SyncStartBlock:        cfg.SyncStartBlock,
	})

	signer, err := loadSigner(cfg.KeystorePath, cfg.KeystorePass)
	if err != nil {
		return fmt.Errorf("unable to load signing key: %w", err)
	}

	monitorABI, err := chainwriter.MonitorABI()
	if err != nil {
		return fmt.Errorf("unable to parse monitoring-service ABI: %w", err)
	}
	userDepositABI, err := chainwriter.UserDepositABI()
	if err != nil {
		return fmt.Errorf("unable to parse user-deposit ABI: %w", err)
	}

	writer := chainwriter.New(chainwriter.Config{
		Client:          ethClient,
		Signer:          signer,
		ChainID:         new(big.Int).SetUint64(cfg.ChainID),
		MonitorContract: gethcommon.HexToAddress(cfg.MonitoringServiceAddress),
		UserDepositAddr: gethcommon.HexToAddress(cfg.UserDepositAddress),
		MonitorABI:      monitorABI,
		UserDepositABI:  userDepositABI,
		GasLimit:        cfg.GasLimit,
	})

	validator := intake.NewValidator(
		chainwriter.EthRecoverer{},
		mustAddr(cfg.MonitoringServiceAddress),
		cfg.ChainID,
	)

	requestIntake, err := newIntake()
	if err != nil {
		return fmt.Errorf("unable to start request intake: %w", err)
	}

	reactor := mainloop.New(mainloop.Config{
		DB:        db,
		Reader:    reader,
		Writer:    writer,
		Intake:    requestIntake,
		Validator: validator,
		Params: contractcourt.Params{
			MonitorFraction:  cfg.MonitorFraction,
			ClaimDelayBlocks: cfg.ClaimDelayBlocks,
			OurAddress:       mustAddr(cfg.MonitoringServiceAddress),
		},
	})

	metricsSrv := msmetrics.NewServer(cfg.MetricsAddr, func(ctx context.Context) error {
		_, err := ethClient.BlockNumber(ctx)
		return err
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errC := make(chan error, 1)
	reactorErrC := make(chan error, 1)
	go func() { errC <- metricsSrv.ListenAndServe(runCtx) }()
	go func() {
		pollTicker := ticker.New(time.Duration(cfg.PollInterval) * time.Second)
		reactorErrC <- reactor.Run(runCtx, pollTicker)
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("Unable to notify systemd: %v", err)
	} else if sent {
		log.Info("Notified systemd of readiness")
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigC:
		log.Infof("Received %v, shutting down", sig)
		reactor.Shutdown()
		// Let the tick in progress commit before cancelling the context
		// its database calls run under.
		err := <-reactorErrC
		cancel()
		return err
	case err := <-errC:
		cancel()
		return err
	case err := <-reactorErrC:
		cancel()
		return err
	}
}

var statusCommand = cli.Command{
	Name:  "status",
	Usage: "print the monitoring service's current synchronization status",
	Action: func(c *cli.Context) error {
		return status()
	},
}

func status() error {
	cfg, err := msconfig.LoadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	expect := channeldb.BlockchainState{
		ChainID:                     cfg.ChainID,
		TokenNetworkRegistryAddress: mustAddr(cfg.RegistryAddress),
		MonitorContractAddress:      mustAddr(cfg.MonitoringServiceAddress),
		MonitoringServiceAddress:    mustAddr(cfg.MonitoringServiceAddress),
	}
	db, err := channeldb.Open(ctx, cfg.Postgres, expect)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := db.Load(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"latest_confirmed_block", snap.LatestConfirmedBlock})
	t.AppendRow(table.Row{"token_networks", len(snap.TokenNetworks)})
	t.AppendRow(table.Row{"channels", len(snap.Channels)})
	t.AppendRow(table.Row{"monitor_requests", len(snap.Requests)})
	t.AppendRow(table.Row{"pending_actions", len(snap.PendingActions)})
	t.Render()

	return nil
}

func mustAddr(hex string) channeldb.Address {
	return channeldb.Address(gethcommon.HexToAddress(hex))
}
