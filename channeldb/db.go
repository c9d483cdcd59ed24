package channeldb

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/channelwatch/msd/mslog"
)

var log = mslog.Logger("CHDB")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// latestSchemaVersion is bumped whenever migrations/ gains a new file.
// migrateUp checks the version recorded in golang-migrate's own table
// against this value the same way the teacher's channeldb compared
// DbVersionNumber on Open.
const latestSchemaVersion = 1

// DB is the primary datastore for the monitoring service. It owns every
// entity named in spec.md §3; no other package is permitted to write
// these tables directly.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at dsn, applies any pending migrations, and
// verifies the persisted blockchain_state row (if any) agrees with the
// supplied expectations. A mismatch is a ConfigMismatch (spec.md §7) and
// is fatal at startup -- the caller should treat a non-nil error as
// grounds to refuse to start.
func Open(ctx context.Context, dsn string, expect BlockchainState) (*DB, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := migrateUp(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to apply migrations: %w", err)
	}

	db := &DB{pool: pool}

	if err := db.ensureBlockchainState(ctx, expect); err != nil {
		pool.Close()
		return nil, err
	}

	return db, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

func migrateUp(dsn string) error {
	srcDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", srcDriver, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Infof("Checking for schema update: latest_version=%v", latestSchemaVersion)

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	version, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return err
	}
	if int(version) != latestSchemaVersion {
		return ErrSchemaMismatch
	}

	return nil
}

// ensureBlockchainState creates the singleton blockchain_state row on a
// fresh database, or validates it against expect on an existing one.
// Mismatches on chain id or any pinned contract address are a fatal
// ConfigMismatch (spec.md §6, §7).
func (d *DB) ensureBlockchainState(ctx context.Context, expect BlockchainState) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var (
		chainID        int64
		registryAddr   []byte
		monitorAddr    []byte
		serviceAddr    []byte
	)
	row := tx.QueryRow(ctx, `SELECT chain_id, token_network_registry_address,
		monitor_contract_address, monitoring_service_address
		FROM blockchain_state WHERE id = TRUE`)
	err = row.Scan(&chainID, &registryAddr, &monitorAddr, &serviceAddr)
	switch {
	case err == nil:
		if uint64(chainID) != expect.ChainID {
			return ErrChainIDMismatch
		}
		if Address(addr20(registryAddr)) != expect.TokenNetworkRegistryAddress {
			return ErrRegistryMismatch
		}
		if Address(addr20(monitorAddr)) != expect.MonitorContractAddress {
			return ErrMonitorMismatch
		}
		if Address(addr20(serviceAddr)) != expect.MonitoringServiceAddress {
			return ErrServiceMismatch
		}
	case isNoRows(err):
		_, err = tx.Exec(ctx, `INSERT INTO blockchain_state
			(id, latest_confirmed_block, chain_id, token_network_registry_address,
			 monitor_contract_address, monitoring_service_address)
			VALUES (TRUE, 0, $1, $2, $3, $4)`,
			expect.ChainID, expect.TokenNetworkRegistryAddress[:],
			expect.MonitorContractAddress[:], expect.MonitoringServiceAddress[:])
		if err != nil {
			return err
		}
	default:
		return err
	}

	return tx.Commit(ctx)
}

func addr20(b []byte) [20]byte {
	var a [20]byte
	copy(a[:], b)
	return a
}

func isNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
