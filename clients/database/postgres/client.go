// package postgres provides a bun backed postgres implementation
// of the database.MetricsDatabase interface
package postgres

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
	"github.com/kava-labs/body-rewrite-proxy/logging"
)

var ErrNoDatabase = errors.New("postgres client has no database connection")

// DatabaseConfig contains values for creating a
// new connection to a postgres database
type DatabaseConfig struct {
	DatabaseName                     string
	DatabaseEndpointURL              string
	DatabaseUsername                 string
	DatabasePassword                 string
	ReadTimeoutSeconds               int64
	DatabaseMaxIdleConnections       int64
	DatabaseConnectionMaxIdleSeconds int64
	DatabaseMaxOpenConnections       int64
	SSLEnabled                       bool
	QueryLoggingEnabled              bool
	Logger                           *logging.ServiceLogger
}

// Client wraps a connection to a postgres database
type Client struct {
	db *bun.DB
	*logging.ServiceLogger
}

var _ database.MetricsDatabase = (*Client)(nil)

// NewClient returns a new connection to the specified
// postgres data and error (if any)
func NewClient(config DatabaseConfig) (*Client, error) {
	if config.DatabaseEndpointURL == "" || config.DatabaseName == "" {
		return nil, fmt.Errorf("database endpoint url and name must be set to create a postgres client")
	}

	if config.DatabaseUsername == "" {
		return nil, fmt.Errorf("database username must be set to create a postgres client")
	}

	if config.Logger == nil {
		return nil, fmt.Errorf("logger must be set to create a postgres client")
	}

	connectorOptions := []pgdriver.Option{
		pgdriver.WithAddr(config.DatabaseEndpointURL),
		pgdriver.WithUser(config.DatabaseUsername),
		pgdriver.WithPassword(config.DatabasePassword),
		pgdriver.WithDatabase(config.DatabaseName),
		pgdriver.WithReadTimeout(time.Second * time.Duration(config.ReadTimeoutSeconds)),
	}

	if config.SSLEnabled {
		connectorOptions = append(connectorOptions, pgdriver.WithTLSConfig(&tls.Config{InsecureSkipVerify: false}))
	} else {
		connectorOptions = append(connectorOptions, pgdriver.WithInsecure(true))
	}

	pgOptions := pgdriver.NewConnector(connectorOptions...)

	config.Logger.Debug().
		Str("addr", config.DatabaseEndpointURL).
		Str("database", config.DatabaseName).
		Bool("ssl", config.SSLEnabled).
		Msg("creating database client")

	// connect to the database
	sqldb := sql.OpenDB(pgOptions)

	// configure connection limits
	// https://go.dev/doc/database/manage-connections#connection_pool_properties
	sqldb.SetMaxIdleConns(int(config.DatabaseMaxIdleConnections))
	sqldb.SetConnMaxIdleTime(time.Second * time.Duration(config.DatabaseConnectionMaxIdleSeconds))
	sqldb.SetMaxOpenConns(int(config.DatabaseMaxOpenConnections))

	db := bun.NewDB(sqldb, pgdialect.New())

	// set up logging on database if requested
	if config.QueryLoggingEnabled {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return &Client{
		db:            db,
		ServiceLogger: config.Logger,
	}, nil
}

// HealthCheck returns an error if the database can not
// be connected to and queried, nil otherwise
func (c *Client) HealthCheck() error {
	if c.db == nil {
		return ErrNoDatabase
	}

	_, err := c.db.Exec(`SELECT 1;`)
	return err
}

// Close closes the underlying database connection pool
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}

	return c.db.Close()
}

// Migrate sets up and runs all migrations in the migrations model
// that haven't been run on the database being used by the proxy service
// returning error (if any) and a list of migrations that have been
// run and any that were not
func (c *Client) Migrate(ctx context.Context, migrations migrate.Migrations) (*migrate.MigrationSlice, error) {
	if c.db == nil {
		return &migrate.MigrationSlice{}, ErrNoDatabase
	}

	// set up migration config
	migrator := migrate.NewMigrator(c.db, &migrations)

	// create / verify tables used to tack migrations
	err := migrator.Init(ctx)

	if err != nil {
		return &migrate.MigrationSlice{}, err
	}

	// run all un-applied migrations
	group, err := migrator.Migrate(ctx)

	// if migration failed attempt to rollback so migrations can be re-attempted
	if err != nil {
		group, rollbackErr := migrator.Rollback(ctx)

		if rollbackErr != nil {
			return &migrate.MigrationSlice{}, fmt.Errorf("error %s rolling back after original error %s", rollbackErr, err)
		}

		if group.ID == 0 {
			return &migrate.MigrationSlice{}, fmt.Errorf("no groups to rollback after migration error %s", err)
		}

		return &migrate.MigrationSlice{}, fmt.Errorf("rolled back after migration error %s", err)
	}

	// get the status of all run and un-run migrations
	ms, err := migrator.MigrationsWithStatus(ctx)

	if err != nil {
		return &migrate.MigrationSlice{}, err
	}

	if group.ID == 0 && c.ServiceLogger != nil {
		c.Debug().Msg("there are no new migrations to run")
	}

	return &ms, nil
}
