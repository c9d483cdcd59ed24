// Package msconfig loads the monitoring service's configuration the way
// lnd's own config.go does: a struct tagged for jessevdk/go-flags,
// parsed first from an ini file (if present) and then overridden by
// command-line flags.
package msconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "msd.conf"
	defaultDataDirname    = "data"
	defaultLogFilename    = "msd.log"
)

// Config holds every option named in spec.md §6's configuration table,
// plus the ambient daemon options (data dir, log file, RPC endpoint)
// a complete service needs but the distilled spec left implicit.
type Config struct {
	ConfigFile string `long:"configfile" description:"Path to configuration file"`
	DataDir    string `long:"datadir" description:"Directory to store the monitoring service's data"`
	LogFile    string `long:"logfile" description:"Path to the log file; empty disables file logging"`
	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems"`

	EthRPCURL string `long:"ethrpcurl" description:"JSON-RPC endpoint of the Ethereum node to follow" required:"true"`
	Postgres  string `long:"postgres" description:"Postgres connection string" required:"true"`

	ChainID                   uint64 `long:"chainid" description:"Chain id the node must report" required:"true"`
	RegistryAddress           string `long:"registryaddress" description:"Token network registry contract address" required:"true"`
	MonitoringServiceAddress  string `long:"monitoringserviceaddress" description:"This service's own contract address" required:"true"`
	UserDepositAddress        string `long:"userdepositaddress" description:"User deposit contract, source of reward funds" required:"true"`

	RequiredConfirmations uint64  `long:"requiredconfirmations" description:"Block depth required before a log is treated as confirmed" default:"10"`
	PollInterval          uint64  `long:"pollinterval" description:"Main-loop cadence when idle, in seconds" default:"15"`
	SyncStartBlock        uint64  `long:"syncstartblock" description:"First block considered on a fresh database"`
	MonitorFraction       float64 `long:"monitorfraction" description:"Fraction of settle_timeout after which a monitor action fires" default:"0.8"`
	ClaimDelayBlocks      uint64  `long:"claimdelayblocks" description:"Blocks after ChannelSettled before a reward-claim action fires" default:"0"`

	KeystorePath string `long:"keystorepath" description:"Path to this service's signing key"`
	KeystorePass string `long:"keystorepass" description:"Passphrase for the signing key (not read: the key file holds an unencrypted hex private key)"`

	GasLimit uint64 `long:"gaslimit" description:"Gas limit used for monitor and claimReward transactions" default:"200000"`

	MetricsAddr string `long:"metricsaddr" description:"Listen address for the Prometheus /metrics and /healthz endpoints" default:"127.0.0.1:9332"`
}

// DefaultConfig returns a Config with the same baseline defaults lnd's
// own loadConfig seeds before parsing flags over it.
func DefaultConfig() Config {
	return Config{
		DataDir:    defaultDataDirname,
		LogFile:    defaultLogFilename,
		DebugLevel: "info",
	}
}

// LoadConfig parses the config file (if one exists at the default or
// user-specified path) and then command-line flags on top of it, the
// same two-pass precedence lnd's config loader uses.
func LoadConfig() (*Config, error) {
	preCfg := DefaultConfig()
	if _, err := flags.NewParser(&preCfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	cfgPath := preCfg.ConfigFile
	if cfgPath == "" {
		cfgPath = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}

	cfg := preCfg
	if _, err := os.Stat(cfgPath); err == nil {
		fileParser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(fileParser).ParseFile(cfgPath); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	// Command-line flags always win over the config file.
	flagParser := flags.NewParser(&cfg, flags.Default)
	if _, err := flagParser.Parse(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MonitorFraction <= 0 || c.MonitorFraction >= 1 {
		return fmt.Errorf("monitorfraction must be in (0, 1), got %v", c.MonitorFraction)
	}
	if c.RequiredConfirmations < 1 {
		return fmt.Errorf("requiredconfirmations must be >= 1")
	}
	return nil
}
