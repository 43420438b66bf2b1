package repository

import (
	"context"
	"fmt"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open builds the Store for driver. dsn is ignored by the memory driver.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	o := newOptions(opts)

	var (
		s   Store
		err error
	)
	switch driver {
	case DriverMemory, "":
		driver = DriverMemory
		s = NewMemoryStore()
	case DriverSQLite:
		s, err = OpenSQLite(ctx, dsn)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}
	if o.instrumented {
		s = Instrument(driver, s)
	}
	return s, nil
}
