package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
)

const applicationName = "evmhub.go"

var supportedSchemes = []string{"postgres://", "postgresql://", "unix://"}

// Open connects to the postgres database at DATABASE_URI. Queries are traced to
// datadog when an agent is configured.
func Open(config *service.Config) (*bun.DB, error) {
	dsn := config.DatabaseUri
	if !supportedDSN(dsn) {
		return nil, fmt.Errorf("Invalid database connection string %s, only (postgres|postgresql|unix):// is supported", dsn)
	}

	db := bun.NewDB(openSQL(config, pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithApplicationName(applicationName),
	)), pgdialect.New())
	db.SetMaxOpenConns(config.DatabaseMaxConns)
	db.SetMaxIdleConns(config.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.DatabaseConnMaxLifetime) * time.Second)

	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		// BUNDEBUG=1 logs failed queries
		// BUNDEBUG=2 logs all queries
		bundebug.FromEnv("BUNDEBUG"),
	))

	return db, nil
}

// Ping fails when the database does not answer within timeout.
func Ping(ctx context.Context, db *bun.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}

func openSQL(config *service.Config, connector driver.Connector) *sql.DB {
	if config.DatadogAgentUrl == "" {
		return sql.OpenDB(connector)
	}
	sqltrace.Register("postgres", pgdriver.Driver{}, sqltrace.WithServiceName(applicationName))
	return sqltrace.OpenDB(connector)
}

func supportedDSN(dsn string) bool {
	for _, scheme := range supportedSchemes {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}
